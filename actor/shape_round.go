package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const roundSegments = 12

// Capsule is a cylinder of the given Height capped by two hemispheres, along
// the local Y axis. Height excludes the caps.
type Capsule struct {
	Radius float64
	Height float64
}

func (c *Capsule) Type() ShapeType { return ShapeTypeCapsule }
func (c *Capsule) IsConvex() bool  { return true }

func (c *Capsule) segment() (mgl64.Vec3, mgl64.Vec3) {
	h := c.Height / 2
	return mgl64.Vec3{0, -h, 0}, mgl64.Vec3{0, h, 0}
}

func (c *Capsule) ComputeAABB(transform Transform) AABB {
	a, b := c.segment()
	r := mgl64.Vec3{c.Radius, c.Radius, c.Radius}
	wa, wb := transform.Apply(a), transform.Apply(b)

	return EmptyAABB().Extend(wa.Sub(r)).Extend(wa.Add(r)).Extend(wb.Sub(r)).Extend(wb.Add(r))
}

func (c *Capsule) Volume() float64 {
	r2 := c.Radius * c.Radius
	return math.Pi*r2*c.Height + (4.0/3.0)*math.Pi*r2*c.Radius
}

func (c *Capsule) ComputeInertia(mass float64) mgl64.Mat3 {
	volume := c.Volume()
	if volume <= 0 {
		return mgl64.Mat3{}
	}
	r, h := c.Radius, c.Height
	cylMass := mass * (math.Pi * r * r * h) / volume
	capMass := mass - cylMass // both hemispheres together

	iy := cylMass*r*r/2 + capMass*2*r*r/5
	// each hemisphere about its own base plus the shift to the capsule center
	ix := cylMass*(3*r*r+h*h)/12 + capMass*(2*r*r/5+h*h/4+3*h*r/8)

	return diagonal(ix, iy, ix)
}

func (c *Capsule) RayCast(start, end mgl64.Vec3) (RayHit, bool) {
	a, b := c.segment()
	best := RayHit{T: math.MaxFloat64}
	found := false

	if t, ok := rayCylinderSide(start, end, c.Radius, a.Y(), b.Y()); ok {
		p := LerpVec3(start, end, t)
		best = RayHit{T: t, Normal: mgl64.Vec3{p.X(), 0, p.Z()}.Normalize()}
		found = true
	}
	for _, center := range []mgl64.Vec3{a, b} {
		if t, ok := raySphere(start, end, center, c.Radius); ok && t < best.T {
			best = RayHit{T: t, Normal: LerpVec3(start, end, t).Sub(center).Normalize()}
			found = true
		}
	}

	return best, found
}

func (c *Capsule) ForEachPolygon(fn func(face []mgl64.Vec3)) {
	a, b := c.segment()
	face := make([]mgl64.Vec3, 4)

	// side
	for j := 0; j < roundSegments; j++ {
		p0, p1 := ringPoint(c.Radius, j), ringPoint(c.Radius, j+1)
		face[0] = p0.Add(a)
		face[1] = p0.Add(b)
		face[2] = p1.Add(b)
		face[3] = p1.Add(a)
		fn(face)
	}

	// caps, one hemisphere each
	const stacks = 4
	for i := 0; i < stacks; i++ {
		phi0 := (math.Pi / 2) * float64(i) / stacks
		phi1 := (math.Pi / 2) * float64(i+1) / stacks
		for j := 0; j < roundSegments; j++ {
			th0 := 2 * math.Pi * float64(j) / roundSegments
			th1 := 2 * math.Pi * float64(j+1) / roundSegments
			face[0] = spherePoint(c.Radius, phi0, th0).Add(b)
			face[1] = spherePoint(c.Radius, phi1, th0).Add(b)
			face[2] = spherePoint(c.Radius, phi1, th1).Add(b)
			face[3] = spherePoint(c.Radius, phi0, th1).Add(b)
			fn(face)
			for k := range face {
				face[k] = mgl64.Vec3{face[k].X(), -face[k].Y(), face[k].Z()}
			}
			fn(face)
		}
	}
}

func (c *Capsule) Scale(scale mgl64.Vec3) {
	s := absVec(scale)
	c.Radius *= math.Max(s.X(), s.Z())
	c.Height *= s.Y()
}

func (c *Capsule) Clone() ShapeInterface {
	cp := *c
	return &cp
}

// Cylinder of the given Radius and Height, along the local Y axis
type Cylinder struct {
	Radius float64
	Height float64
}

func (c *Cylinder) Type() ShapeType { return ShapeTypeCylinder }
func (c *Cylinder) IsConvex() bool  { return true }

func (c *Cylinder) ComputeAABB(transform Transform) AABB {
	h := c.Height / 2
	local := AABB{Min: mgl64.Vec3{-c.Radius, -h, -c.Radius}, Max: mgl64.Vec3{c.Radius, h, c.Radius}}
	return local.Transformed(transform)
}

func (c *Cylinder) Volume() float64 {
	return math.Pi * c.Radius * c.Radius * c.Height
}

func (c *Cylinder) ComputeInertia(mass float64) mgl64.Mat3 {
	r, h := c.Radius, c.Height
	iy := mass * r * r / 2
	ix := mass * (3*r*r + h*h) / 12
	return diagonal(ix, iy, ix)
}

func (c *Cylinder) RayCast(start, end mgl64.Vec3) (RayHit, bool) {
	h := c.Height / 2
	best := RayHit{T: math.MaxFloat64}
	found := false

	if t, ok := rayCylinderSide(start, end, c.Radius, -h, h); ok {
		p := LerpVec3(start, end, t)
		best = RayHit{T: t, Normal: mgl64.Vec3{p.X(), 0, p.Z()}.Normalize()}
		found = true
	}

	dy := end.Y() - start.Y()
	if math.Abs(dy) > 1e-12 {
		for _, capY := range []float64{-h, h} {
			t := (capY - start.Y()) / dy
			if t < 0 || t > 1 || t >= best.T {
				continue
			}
			p := LerpVec3(start, end, t)
			if p.X()*p.X()+p.Z()*p.Z() <= c.Radius*c.Radius {
				best = RayHit{T: t, Normal: mgl64.Vec3{0, math.Copysign(1, capY), 0}}
				found = true
			}
		}
	}

	return best, found
}

func (c *Cylinder) ForEachPolygon(fn func(face []mgl64.Vec3)) {
	h := c.Height / 2
	top := mgl64.Vec3{0, h, 0}
	bottom := mgl64.Vec3{0, -h, 0}

	face := make([]mgl64.Vec3, 4)
	for j := 0; j < roundSegments; j++ {
		p0, p1 := ringPoint(c.Radius, j), ringPoint(c.Radius, j+1)
		face[0] = p0.Add(bottom)
		face[1] = p0.Add(top)
		face[2] = p1.Add(top)
		face[3] = p1.Add(bottom)
		fn(face)
	}

	capTop := make([]mgl64.Vec3, roundSegments)
	capBottom := make([]mgl64.Vec3, roundSegments)
	for j := 0; j < roundSegments; j++ {
		capTop[j] = ringPoint(c.Radius, j).Add(top)
		capBottom[roundSegments-1-j] = ringPoint(c.Radius, j).Add(bottom)
	}
	fn(capTop)
	fn(capBottom)
}

func (c *Cylinder) Scale(scale mgl64.Vec3) {
	s := absVec(scale)
	c.Radius *= math.Max(s.X(), s.Z())
	c.Height *= s.Y()
}

func (c *Cylinder) Clone() ShapeInterface {
	cp := *c
	return &cp
}

func ringPoint(radius float64, j int) mgl64.Vec3 {
	th := 2 * math.Pi * float64(j%roundSegments) / roundSegments
	return mgl64.Vec3{radius * math.Cos(th), 0, radius * math.Sin(th)}
}

// rayCylinderSide intersects start->end with the side of a Y-aligned
// cylinder clipped to [minY, maxY].
func rayCylinderSide(start, end mgl64.Vec3, radius, minY, maxY float64) (float64, bool) {
	dx, dz := end.X()-start.X(), end.Z()-start.Z()
	a := dx*dx + dz*dz
	if a < 1e-18 {
		return 0, false
	}
	b := start.X()*dx + start.Z()*dz
	c := start.X()*start.X() + start.Z()*start.Z() - radius*radius
	disc := b*b - a*c
	if disc < 0 {
		return 0, false
	}
	t := (-b - math.Sqrt(disc)) / a
	if t < 0 || t > 1 {
		return 0, false
	}
	y := start.Y() + (end.Y()-start.Y())*t
	if y < minY || y > maxY {
		return 0, false
	}
	return t, true
}
