package actor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestTransformRoundTrip(t *testing.T) {
	transform := Transform{
		Position: mgl64.Vec3{1, -2, 3},
		Rotation: mgl64.QuatRotate(0.7, mgl64.Vec3{1, 1, 0}.Normalize()),
	}
	point := mgl64.Vec3{0.3, 4, -1}

	if got := transform.ApplyInverse(transform.Apply(point)); !vec3Equal(got, point, 1e-9) {
		t.Errorf("ApplyInverse(Apply(p)) = %v, want %v", got, point)
	}
	if got := transform.Mul(transform.Inverse()); !vec3Equal(got.Position, mgl64.Vec3{}, 1e-9) ||
		!floatEqual(math.Abs(got.Rotation.W), 1, 1e-9) {
		t.Errorf("t * t^-1 = %v, want identity", got)
	}

	fromMatrix := TransformFromMatrix(transform.Matrix())
	if !vec3Equal(fromMatrix.Apply(point), transform.Apply(point), 1e-9) {
		t.Errorf("TransformFromMatrix(Matrix()) maps %v to %v, want %v", point, fromMatrix.Apply(point), transform.Apply(point))
	}
}

func TestTransformFromScaledMatrix(t *testing.T) {
	m := mgl64.Translate3D(1, 2, 3).Mul4(mgl64.HomogRotate3DY(math.Pi / 2)).Mul4(mgl64.Scale3D(2, 3, 4))
	transform := TransformFromMatrix(m)

	if transform.Position != (mgl64.Vec3{1, 2, 3}) {
		t.Errorf("Position = %v, want {1 2 3}", transform.Position)
	}
	if !floatEqual(transform.Rotation.Len(), 1, 1e-9) {
		t.Errorf("Rotation %v is not a unit quaternion", transform.Rotation)
	}
	if got := transform.Rotation.Rotate(mgl64.Vec3{1, 0, 0}); !vec3Equal(got, mgl64.Vec3{0, 0, -1}, 1e-9) {
		t.Errorf("X axis rotated to %v, want {0 0 -1}", got)
	}
}

func TestTransformMulComposesParentChild(t *testing.T) {
	parent := Transform{Position: mgl64.Vec3{10, 0, 0}, Rotation: mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})}
	child := Transform{Position: mgl64.Vec3{1, 0, 0}, Rotation: mgl64.QuatIdent()}

	world := parent.Mul(child)
	if !vec3Equal(world.Position, mgl64.Vec3{10, 0, -1}, 1e-9) {
		t.Errorf("child world position = %v, want {10 0 -1}", world.Position)
	}
}

func TestIsFinite(t *testing.T) {
	tests := []struct {
		name      string
		transform Transform
		want      bool
	}{
		{"identity", NewTransform(), true},
		{"NaN position", Transform{Position: mgl64.Vec3{math.NaN(), 0, 0}, Rotation: mgl64.QuatIdent()}, false},
		{"Inf position", Transform{Position: mgl64.Vec3{0, math.Inf(1), 0}, Rotation: mgl64.QuatIdent()}, false},
		{"NaN rotation", Transform{Rotation: mgl64.Quat{W: math.NaN()}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.transform.IsFinite(); got != tt.want {
				t.Errorf("IsFinite() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInterpolate(t *testing.T) {
	previous := Transform{Position: mgl64.Vec3{0, 0, 0}, Rotation: mgl64.QuatIdent()}
	current := Transform{Position: mgl64.Vec3{2, 4, 0}, Rotation: mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})}

	if got := Interpolate(previous, current, 0); got != previous {
		t.Errorf("Interpolate(0) = %v, want the previous pose exactly", got)
	}
	if got := Interpolate(previous, current, 1); got != current {
		t.Errorf("Interpolate(1) = %v, want the current pose exactly", got)
	}

	half := Interpolate(previous, current, 0.5)
	if !vec3Equal(half.Position, mgl64.Vec3{1, 2, 0}, 1e-9) {
		t.Errorf("half Position = %v, want {1 2 0}", half.Position)
	}
	want := mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 0, 1})
	if !floatEqual(math.Abs(half.Rotation.Dot(want)), 1, 1e-9) {
		t.Errorf("half Rotation = %v, want %v", half.Rotation, want)
	}

	t.Run("short arc", func(t *testing.T) {
		q := mgl64.QuatRotate(0.2, mgl64.Vec3{0, 1, 0})
		negated := q.Scale(-1)
		mid := Slerp(q, negated, 0.5)
		if !floatEqual(math.Abs(mid.Dot(q)), 1, 1e-9) {
			t.Errorf("Slerp(q, -q) = %v, want the same rotation as %v", mid, q)
		}
	})
}
