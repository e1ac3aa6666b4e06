package actor

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestCollisionReferenceCounting(t *testing.T) {
	destroyed := 0
	c := NewCollision(&Box{HalfExtents: mgl64.Vec3{1, 1, 1}})
	c.OnDestroy = func(*Collision) { destroyed++ }

	if c.RefCount() != 1 || c.IsShared() {
		t.Fatalf("new collision: refs %d shared %v, want 1 false", c.RefCount(), c.IsShared())
	}

	c.Retain()
	if !c.IsShared() {
		t.Error("two holders share the collision")
	}
	if c.Release() {
		t.Error("the first release is not the last")
	}
	if c.Shape() == nil {
		t.Fatal("shape dropped while still referenced")
	}
	if !c.Release() {
		t.Error("the second release is the last")
	}
	if c.Shape() != nil || c.Type() != -1 {
		t.Error("shape kept after the last release")
	}

	c.Retain()
	if c.Release() || c.RefCount() != 0 {
		t.Error("a released collision cannot be revived")
	}
	if destroyed != 1 {
		t.Errorf("OnDestroy ran %d times, want 1", destroyed)
	}
}

func TestCollisionNilAndReleasedAreInert(t *testing.T) {
	var nilCollision *Collision
	released := NewCollision(&Sphere{Radius: 1})
	released.Release()

	for name, c := range map[string]*Collision{"nil": nilCollision, "released": released} {
		t.Run(name, func(t *testing.T) {
			if c.Volume() != 0 {
				t.Errorf("Volume() = %v, want 0", c.Volume())
			}
			if c.ComputeInertia(1) != (mgl64.Mat3{}) {
				t.Error("ComputeInertia() is not zero")
			}
			if _, ok := c.RayCast(mgl64.Vec3{0, 5, 0}, mgl64.Vec3{0, -5, 0}); ok {
				t.Error("RayCast() hit a destroyed collision")
			}
			if c.SetScale(mgl64.Vec3{2, 2, 2}) {
				t.Error("SetScale() succeeded on a destroyed collision")
			}
			c.ForEachPolygon(func([]mgl64.Vec3) { t.Error("ForEachPolygon() walked a destroyed collision") })

			position := mgl64.Vec3{1, 2, 3}
			aabb := c.ComputeAABB(Transform{Position: position, Rotation: mgl64.QuatIdent()})
			if aabb.Min != position || aabb.Max != position {
				t.Errorf("ComputeAABB() = %v, want a point box at %v", aabb, position)
			}
		})
	}
}

func TestCollisionCopyOnWrite(t *testing.T) {
	shared := NewCollision(&Box{HalfExtents: mgl64.Vec3{1, 1, 1}})
	other := shared.Retain()

	if shared.SetScale(mgl64.Vec3{2, 2, 2}) {
		t.Fatal("SetScale() mutated a shared collision")
	}

	mine := shared.MakeUnique()
	if mine == shared || mine.ID() == shared.ID() {
		t.Fatal("MakeUnique() returned the shared collision")
	}
	if other.RefCount() != 1 {
		t.Errorf("shared refs = %d, want 1 after giving one up", other.RefCount())
	}

	before := mine.Revision()
	if !mine.SetScale(mgl64.Vec3{2, 2, 2}) {
		t.Fatal("SetScale() refused a private collision")
	}
	if mine.Revision() != before+1 {
		t.Errorf("Revision() = %d, want %d", mine.Revision(), before+1)
	}
	if got := mine.Shape().(*Box).HalfExtents; got != (mgl64.Vec3{2, 2, 2}) {
		t.Errorf("private HalfExtents = %v, want {2 2 2}", got)
	}
	if got := other.Shape().(*Box).HalfExtents; got != (mgl64.Vec3{1, 1, 1}) {
		t.Errorf("shared HalfExtents = %v, want it untouched", got)
	}

	if mine.MakeUnique() != mine {
		t.Error("MakeUnique() copied an unshared collision")
	}
}

func TestCollisionIsStaticOnly(t *testing.T) {
	tests := []struct {
		shape ShapeInterface
		want  bool
	}{
		{&Plane{Normal: mgl64.Vec3{0, 1, 0}}, true},
		{&TreeMesh{}, true},
		{&HeightField{}, true},
		{&Box{HalfExtents: mgl64.Vec3{1, 1, 1}}, false},
		{&Compound{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.shape.Type().String(), func(t *testing.T) {
			c := NewCollision(tt.shape)
			defer c.Release()
			if c.IsStaticOnly() != tt.want {
				t.Errorf("IsStaticOnly() = %v, want %v", c.IsStaticOnly(), tt.want)
			}
		})
	}
}

func TestCollisionCenterOfMass(t *testing.T) {
	hull := NewCollision(NewConvexHull([]mgl64.Vec3{{0, 0, 0}, {4, 0, 0}, {0, 4, 0}, {0, 0, 4}}))
	defer hull.Release()
	if !vec3Equal(hull.CenterOfMass(), mgl64.Vec3{1, 1, 1}, 1e-9) {
		t.Errorf("hull CenterOfMass() = %v, want {1 1 1}", hull.CenterOfMass())
	}

	box := NewCollision(&Box{HalfExtents: mgl64.Vec3{1, 1, 1}})
	defer box.Release()
	if box.CenterOfMass() != (mgl64.Vec3{}) {
		t.Errorf("box CenterOfMass() = %v, want the origin", box.CenterOfMass())
	}
}
