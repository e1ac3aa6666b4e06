package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ShapeType represents the type of collision shape
type ShapeType int

const (
	ShapeTypeSphere ShapeType = iota
	ShapeTypeBox
	ShapeTypePlane
	ShapeTypeCapsule
	ShapeTypeCylinder
	ShapeTypeConvexHull
	ShapeTypeCompound
	ShapeTypeTreeMesh
	ShapeTypeHeightField
)

func (t ShapeType) String() string {
	switch t {
	case ShapeTypeSphere:
		return "sphere"
	case ShapeTypeBox:
		return "box"
	case ShapeTypePlane:
		return "plane"
	case ShapeTypeCapsule:
		return "capsule"
	case ShapeTypeCylinder:
		return "cylinder"
	case ShapeTypeConvexHull:
		return "convexhull"
	case ShapeTypeCompound:
		return "compound"
	case ShapeTypeTreeMesh:
		return "treemesh"
	case ShapeTypeHeightField:
		return "heightfield"
	}
	return "unknown"
}

// RayHit is the result of a ray test in shape-local space. T is the parametric
// distance along the tested segment, in [0,1].
type RayHit struct {
	T      float64
	Normal mgl64.Vec3
	// ID identifies the sub-shape that was hit (compound child, mesh face);
	// 0 for simple shapes.
	ID int
}

// ShapeInterface is the interface that all collision shapes must implement.
// Every method works in the shape's local space unless it takes a Transform.
type ShapeInterface interface {
	Type() ShapeType
	// ComputeAABB calculates the axis-aligned bounding box for the shape
	// at the given transform
	ComputeAABB(transform Transform) AABB
	// Volume is 0 for shapes that can only be static
	Volume() float64
	ComputeInertia(mass float64) mgl64.Mat3
	RayCast(start, end mgl64.Vec3) (RayHit, bool)
	// ForEachPolygon walks the polygonal representation used for debug
	// wireframes. fn must not retain the slice.
	ForEachPolygon(fn func(face []mgl64.Vec3))
	// Scale resizes the geometry in place
	Scale(scale mgl64.Vec3)
	Clone() ShapeInterface
}

// Convex is implemented by shapes that can back a dynamic body
type Convex interface {
	ShapeInterface
	IsConvex() bool
}

// Deformable is implemented by shapes whose visual vertices follow the
// simulated geometry and must be resynchronized after each render sync.
type Deformable interface {
	ShapeInterface
	SyncDeformation(rendered Transform)
}

// Box represents an oriented box collision shape
// The box is defined by its half-extents (half-width, half-height, half-depth)
type Box struct {
	HalfExtents mgl64.Vec3
}

func (b *Box) Type() ShapeType { return ShapeTypeBox }
func (b *Box) IsConvex() bool  { return true }

func (b *Box) localAABB() AABB {
	return AABB{Min: b.HalfExtents.Mul(-1), Max: b.HalfExtents}
}

func (b *Box) ComputeAABB(transform Transform) AABB {
	return b.localAABB().Transformed(transform)
}

// Volume = 8 * hx * hy * hz (full dimensions are 2*halfExtents)
func (b *Box) Volume() float64 {
	return 8.0 * b.HalfExtents.X() * b.HalfExtents.Y() * b.HalfExtents.Z()
}

func (b *Box) ComputeInertia(mass float64) mgl64.Mat3 {
	x := b.HalfExtents.X() * 2
	y := b.HalfExtents.Y() * 2
	z := b.HalfExtents.Z() * 2

	// I = (m/12) * (dimension1² + dimension2²)
	factor := mass / 12.0
	return diagonal(factor*(y*y+z*z), factor*(x*x+z*z), factor*(x*x+y*y))
}

func (b *Box) RayCast(start, end mgl64.Vec3) (RayHit, bool) {
	aabb := b.localAABB()
	t, ok := aabb.SegmentIntersects(start, end)
	if !ok {
		return RayHit{}, false
	}

	// the face hit is the axis where the entry point sits on the boundary
	point := LerpVec3(start, end, t)
	var normal mgl64.Vec3
	best := math.MaxFloat64
	for i := 0; i < 3; i++ {
		if d := math.Abs(point[i] - aabb.Max[i]); d < best {
			best = d
			normal = mgl64.Vec3{}
			normal[i] = 1
		}
		if d := math.Abs(point[i] - aabb.Min[i]); d < best {
			best = d
			normal = mgl64.Vec3{}
			normal[i] = -1
		}
	}

	return RayHit{T: t, Normal: normal}, true
}

func (b *Box) ForEachPolygon(fn func(face []mgl64.Vec3)) {
	hx, hy, hz := b.HalfExtents.X(), b.HalfExtents.Y(), b.HalfExtents.Z()

	// 6 faces, CCW seen from outside
	faces := [6][4]mgl64.Vec3{
		{{hx, -hy, -hz}, {hx, hy, -hz}, {hx, hy, hz}, {hx, -hy, hz}},
		{{-hx, -hy, hz}, {-hx, hy, hz}, {-hx, hy, -hz}, {-hx, -hy, -hz}},
		{{-hx, hy, -hz}, {-hx, hy, hz}, {hx, hy, hz}, {hx, hy, -hz}},
		{{-hx, -hy, hz}, {-hx, -hy, -hz}, {hx, -hy, -hz}, {hx, -hy, hz}},
		{{-hx, -hy, hz}, {hx, -hy, hz}, {hx, hy, hz}, {-hx, hy, hz}},
		{{hx, -hy, -hz}, {-hx, -hy, -hz}, {-hx, hy, -hz}, {hx, hy, -hz}},
	}
	for i := range faces {
		fn(faces[i][:])
	}
}

func (b *Box) Scale(scale mgl64.Vec3) {
	b.HalfExtents = mulElem(b.HalfExtents, absVec(scale))
}

func (b *Box) Clone() ShapeInterface {
	c := *b
	return &c
}

// Sphere represents a spherical collision shape
type Sphere struct {
	Radius float64
}

func (s *Sphere) Type() ShapeType { return ShapeTypeSphere }
func (s *Sphere) IsConvex() bool  { return true }

// ComputeAABB calculates the axis-aligned bounding box for the sphere
func (s *Sphere) ComputeAABB(transform Transform) AABB {
	// Sphere AABB is not affected by rotation, only by position
	radiusVec := mgl64.Vec3{s.Radius, s.Radius, s.Radius}

	return AABB{
		Min: transform.Position.Sub(radiusVec),
		Max: transform.Position.Add(radiusVec),
	}
}

// Volume of sphere = (4/3) * π * r³
func (s *Sphere) Volume() float64 {
	return (4.0 / 3.0) * math.Pi * math.Pow(s.Radius, 3)
}

func (s *Sphere) ComputeInertia(mass float64) mgl64.Mat3 {
	// I = (2/5) * m * r², same on all axes
	i := (2.0 / 5.0) * mass * s.Radius * s.Radius
	return diagonal(i, i, i)
}

func (s *Sphere) RayCast(start, end mgl64.Vec3) (RayHit, bool) {
	t, ok := raySphere(start, end, mgl64.Vec3{}, s.Radius)
	if !ok {
		return RayHit{}, false
	}
	return RayHit{T: t, Normal: LerpVec3(start, end, t).Normalize()}, true
}

func (s *Sphere) ForEachPolygon(fn func(face []mgl64.Vec3)) {
	const stacks, slices = 8, 12
	face := make([]mgl64.Vec3, 4)
	for i := 0; i < stacks; i++ {
		phi0 := math.Pi * float64(i) / stacks
		phi1 := math.Pi * float64(i+1) / stacks
		for j := 0; j < slices; j++ {
			th0 := 2 * math.Pi * float64(j) / slices
			th1 := 2 * math.Pi * float64(j+1) / slices
			face[0] = spherePoint(s.Radius, phi0, th0)
			face[1] = spherePoint(s.Radius, phi1, th0)
			face[2] = spherePoint(s.Radius, phi1, th1)
			face[3] = spherePoint(s.Radius, phi0, th1)
			fn(face)
		}
	}
}

// Scale keeps the sphere round, the largest axis wins
func (s *Sphere) Scale(scale mgl64.Vec3) {
	s.Radius *= maxComponent(absVec(scale))
}

func (s *Sphere) Clone() ShapeInterface {
	c := *s
	return &c
}

// Plane represents an infinite plane collision shape
// The plane is defined by the equation: Normal · p + Distance = 0
// where Normal is the plane's normal vector (must be normalized)
// and Distance is the signed distance from the origin along the normal.
// Planes can only back static bodies.
type Plane struct {
	Normal   mgl64.Vec3
	Distance float64
}

func (p *Plane) Type() ShapeType { return ShapeTypePlane }

func (p *Plane) ComputeAABB(transform Transform) AABB {
	const thickness = 1.0 // detection thickness below the plane
	const infinity = 1e10

	normal := transform.Rotation.Rotate(p.Normal)
	planePoint := normal.Mul(-p.Distance)

	min := planePoint.Sub(normal.Mul(thickness)).Add(transform.Position)
	max := planePoint.Add(transform.Position)
	for i := 0; i < 3; i++ {
		if min[i] > max[i] {
			min[i], max[i] = max[i], min[i]
		}
		// only the axis aligned with the normal keeps a finite extent
		if math.Abs(normal[i]) < 1.0-1e-9 {
			min[i] = -infinity
			max[i] = infinity
		}
	}

	return AABB{Min: min, Max: max}
}

func (p *Plane) Volume() float64 { return 0 }

func (p *Plane) ComputeInertia(mass float64) mgl64.Mat3 {
	return mgl64.Mat3{}
}

func (p *Plane) RayCast(start, end mgl64.Vec3) (RayHit, bool) {
	ds := p.Normal.Dot(start) + p.Distance
	de := p.Normal.Dot(end) + p.Distance
	if ds < 0 || de > 0 || ds == de {
		return RayHit{}, false
	}
	return RayHit{T: ds / (ds - de), Normal: p.Normal}, true
}

// ForEachPolygon emits one large quad; the extent matches the contact feature
// size used for plane contacts.
func (p *Plane) ForEachPolygon(fn func(face []mgl64.Vec3)) {
	tangent1, tangent2 := getTangentBasis(p.Normal)
	center := p.Normal.Mul(-p.Distance)
	size := 1000.0

	fn([]mgl64.Vec3{
		center.Add(tangent1.Mul(-size)).Add(tangent2.Mul(-size)),
		center.Add(tangent1.Mul(-size)).Add(tangent2.Mul(size)),
		center.Add(tangent1.Mul(size)).Add(tangent2.Mul(size)),
		center.Add(tangent1.Mul(size)).Add(tangent2.Mul(-size)),
	})
}

func (p *Plane) Scale(scale mgl64.Vec3) {}

func (p *Plane) Clone() ShapeInterface {
	c := *p
	return &c
}

// Helper to generate the tangent basis
func getTangentBasis(normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	var tangent1 mgl64.Vec3
	if math.Abs(normal.X()) > 0.9 {
		tangent1 = mgl64.Vec3{0, 1, 0}
	} else {
		tangent1 = mgl64.Vec3{1, 0, 0}
	}

	tangent1 = tangent1.Sub(normal.Mul(tangent1.Dot(normal))).Normalize()
	tangent2 := normal.Cross(tangent1).Normalize()

	return tangent1, tangent2
}

func diagonal(x, y, z float64) mgl64.Mat3 {
	return mgl64.Mat3{
		x, 0, 0,
		0, y, 0,
		0, 0, z,
	}
}

func spherePoint(radius, phi, theta float64) mgl64.Vec3 {
	return mgl64.Vec3{
		radius * math.Sin(phi) * math.Cos(theta),
		radius * math.Cos(phi),
		radius * math.Sin(phi) * math.Sin(theta),
	}
}

// raySphere returns the first parameter in [0,1] where start->end enters the
// sphere.
func raySphere(start, end, center mgl64.Vec3, radius float64) (float64, bool) {
	d := end.Sub(start)
	m := start.Sub(center)
	a := d.Dot(d)
	if a < 1e-18 {
		return 0, false
	}
	b := m.Dot(d)
	c := m.Dot(m) - radius*radius
	if c <= 0 {
		// starting inside counts as an immediate hit
		return 0, true
	}
	disc := b*b - a*c
	if disc < 0 {
		return 0, false
	}
	t := (-b - math.Sqrt(disc)) / a
	if t < 0 || t > 1 {
		return 0, false
	}
	return t, true
}

func mulElem(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func absVec(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Abs(v[0]), math.Abs(v[1]), math.Abs(v[2])}
}

func maxComponent(v mgl64.Vec3) float64 {
	return math.Max(v[0], math.Max(v[1], v[2]))
}
