package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// CompoundChild is one sub-shape of a Compound, placed by Offset
type CompoundChild struct {
	Shape  ShapeInterface
	Offset Transform
}

// Compound groups several convex shapes into one rigid collision
type Compound struct {
	Children []CompoundChild
}

func (c *Compound) Type() ShapeType { return ShapeTypeCompound }

func (c *Compound) IsConvex() bool { return false }

// Child returns the child at index i. Out-of-range indices are clamped to the
// nearest valid child; ok is false only when the compound is empty.
func (c *Compound) Child(i int) (child CompoundChild, ok bool) {
	if len(c.Children) == 0 {
		return CompoundChild{}, false
	}
	i = max(0, min(i, len(c.Children)-1))
	return c.Children[i], true
}

func (c *Compound) ComputeAABB(transform Transform) AABB {
	if len(c.Children) == 0 {
		return AABB{Min: transform.Position, Max: transform.Position}
	}
	aabb := EmptyAABB()
	for _, child := range c.Children {
		aabb = aabb.Union(child.Shape.ComputeAABB(transform.Mul(child.Offset)))
	}
	return aabb
}

func (c *Compound) Volume() float64 {
	volume := 0.0
	for _, child := range c.Children {
		volume += child.Shape.Volume()
	}
	return volume
}

// ComputeInertia distributes mass by child volume, rotates each child tensor
// into compound space and moves it with the parallel axis theorem.
func (c *Compound) ComputeInertia(mass float64) mgl64.Mat3 {
	volume := c.Volume()
	if volume <= 0 {
		return mgl64.Mat3{}
	}

	inertia := mgl64.Mat3{}
	for _, child := range c.Children {
		childMass := mass * child.Shape.Volume() / volume
		local := child.Shape.ComputeInertia(childMass)

		R := child.Offset.Rotation.Normalize().Mat4().Mat3()
		rotated := R.Mul3(local).Mul3(R.Transpose())

		d := child.Offset.Position
		shift := mgl64.Ident3().Mul(d.Dot(d)).Sub(d.OuterProd3(d)).Mul(childMass)
		inertia = inertia.Add(rotated).Add(shift)
	}
	return inertia
}

// RayCast reports the closest child hit; RayHit.ID is the child index
func (c *Compound) RayCast(start, end mgl64.Vec3) (RayHit, bool) {
	best := RayHit{T: math.MaxFloat64}
	found := false
	for i, child := range c.Children {
		hit, ok := child.Shape.RayCast(child.Offset.ApplyInverse(start), child.Offset.ApplyInverse(end))
		if ok && hit.T < best.T {
			best = RayHit{T: hit.T, Normal: child.Offset.Rotation.Rotate(hit.Normal), ID: i}
			found = true
		}
	}
	return best, found
}

func (c *Compound) ForEachPolygon(fn func(face []mgl64.Vec3)) {
	var transformed []mgl64.Vec3
	for _, child := range c.Children {
		offset := child.Offset
		child.Shape.ForEachPolygon(func(face []mgl64.Vec3) {
			transformed = transformed[:0]
			for _, v := range face {
				transformed = append(transformed, offset.Apply(v))
			}
			fn(transformed)
		})
	}
}

func (c *Compound) Scale(scale mgl64.Vec3) {
	for i := range c.Children {
		c.Children[i].Offset.Position = mulElem(c.Children[i].Offset.Position, scale)
		c.Children[i].Shape.Scale(scale)
	}
}

func (c *Compound) Clone() ShapeInterface {
	clone := &Compound{Children: make([]CompoundChild, len(c.Children))}
	for i, child := range c.Children {
		clone.Children[i] = CompoundChild{Shape: child.Shape.Clone(), Offset: child.Offset}
	}
	return clone
}
