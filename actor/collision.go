package actor

import (
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
)

var collisionIDs atomic.Uint64

// Collision is a reference-counted collision geometry shared by any number of
// bodies. The creator holds the first reference; every holder that keeps the
// collision calls Retain and later Release. The shape is dropped when the last
// reference is released, never earlier.
//
// All methods are safe on a nil or released Collision and return zero values.
type Collision struct {
	id       uint64
	mu       sync.RWMutex
	shape    ShapeInterface
	refs     atomic.Int32
	revision atomic.Uint64

	// OnDestroy, when set, runs once after the last release
	OnDestroy func(c *Collision)
}

// NewCollision wraps shape and gives the caller its first reference
func NewCollision(shape ShapeInterface) *Collision {
	c := &Collision{
		id:    collisionIDs.Add(1),
		shape: shape,
	}
	c.refs.Store(1)
	return c
}

// ID is unique per Collision for the process lifetime
func (c *Collision) ID() uint64 {
	if c == nil {
		return 0
	}
	return c.id
}

// Revision increases every time the geometry is mutated in place
func (c *Collision) Revision() uint64 {
	if c == nil {
		return 0
	}
	return c.revision.Load()
}

// Shape returns the wrapped geometry, nil once destroyed
func (c *Collision) Shape() ShapeInterface {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shape
}

// Type returns the shape type, or -1 once destroyed
func (c *Collision) Type() ShapeType {
	shape := c.Shape()
	if shape == nil {
		return -1
	}
	return shape.Type()
}

// Retain adds a reference. Retaining a destroyed collision does not revive it.
func (c *Collision) Retain() *Collision {
	if c == nil {
		return nil
	}
	for {
		n := c.refs.Load()
		if n <= 0 {
			return c
		}
		if c.refs.CompareAndSwap(n, n+1) {
			return c
		}
	}
}

// Release drops one reference and reports whether it was the last one
func (c *Collision) Release() bool {
	if c == nil {
		return false
	}
	for {
		n := c.refs.Load()
		if n <= 0 {
			return false
		}
		if !c.refs.CompareAndSwap(n, n-1) {
			continue
		}
		if n-1 > 0 {
			return false
		}

		c.mu.Lock()
		c.shape = nil
		c.mu.Unlock()
		if c.OnDestroy != nil {
			c.OnDestroy(c)
		}
		return true
	}
}

// RefCount returns the number of live references
func (c *Collision) RefCount() int {
	if c == nil {
		return 0
	}
	return int(c.refs.Load())
}

// IsShared reports whether more than one holder references the collision
func (c *Collision) IsShared() bool {
	return c.RefCount() > 1
}

// MakeUnique is the copy-on-write step before a mutation. When the collision
// is shared it gives up the caller's reference and returns a private copy
// holding a fresh reference; otherwise it returns c unchanged.
func (c *Collision) MakeUnique() *Collision {
	if c == nil || !c.IsShared() {
		return c
	}
	shape := c.Shape()
	if shape == nil {
		return c
	}
	clone := NewCollision(shape.Clone())
	c.Release()
	return clone
}

// SetScale resizes the geometry in place. It refuses (returns false) when the
// collision is shared, because every other holder would see the change; call
// MakeUnique first.
func (c *Collision) SetScale(scale mgl64.Vec3) bool {
	if c == nil || c.IsShared() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shape == nil {
		return false
	}
	c.shape.Scale(scale)
	c.revision.Add(1)
	return true
}

// ComputeAABB returns the world box at transform, or a degenerate box at the
// transform position once destroyed
func (c *Collision) ComputeAABB(transform Transform) AABB {
	shape := c.Shape()
	if shape == nil {
		return AABB{Min: transform.Position, Max: transform.Position}
	}
	return shape.ComputeAABB(transform)
}

// Volume of the geometry, 0 once destroyed
func (c *Collision) Volume() float64 {
	shape := c.Shape()
	if shape == nil {
		return 0
	}
	return shape.Volume()
}

// ComputeInertia returns the inertia tensor for mass, zero once destroyed
func (c *Collision) ComputeInertia(mass float64) mgl64.Mat3 {
	shape := c.Shape()
	if shape == nil {
		return mgl64.Mat3{}
	}
	return shape.ComputeInertia(mass)
}

// CenterOfMass returns the local center of mass of the geometry
func (c *Collision) CenterOfMass() mgl64.Vec3 {
	switch shape := c.Shape().(type) {
	case *ConvexHull:
		return shape.CenterOfMass()
	}
	return mgl64.Vec3{}
}

// RayCast tests a shape-local segment against the geometry
func (c *Collision) RayCast(start, end mgl64.Vec3) (RayHit, bool) {
	shape := c.Shape()
	if shape == nil {
		return RayHit{}, false
	}
	return shape.RayCast(start, end)
}

// ForEachPolygon walks the debug polygons of the geometry
func (c *Collision) ForEachPolygon(fn func(face []mgl64.Vec3)) {
	shape := c.Shape()
	if shape == nil {
		return
	}
	shape.ForEachPolygon(fn)
}

// IsStaticOnly reports whether the geometry has no volume and can only back
// static bodies (planes, meshes, height fields)
func (c *Collision) IsStaticOnly() bool {
	switch c.Type() {
	case ShapeTypePlane, ShapeTypeTreeMesh, ShapeTypeHeightField:
		return true
	}
	return false
}
