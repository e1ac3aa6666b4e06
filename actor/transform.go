package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform represents a position and orientation in 3D space
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// NewTransform creates an identity transform
func NewTransform() Transform {
	return Transform{
		Position: mgl64.Vec3{0, 0, 0},
		Rotation: mgl64.QuatIdent(),
	}
}

// TransformFromMatrix extracts the rigid part of a 4x4 matrix. Any scale in
// the upper 3x3 is normalized away.
func TransformFromMatrix(m mgl64.Mat4) Transform {
	x := m.Col(0).Vec3().Normalize()
	y := m.Col(1).Vec3().Normalize()
	z := m.Col(2).Vec3().Normalize()
	rot := mgl64.Mat3FromCols(x, y, z)

	return Transform{
		Position: m.Col(3).Vec3(),
		Rotation: mgl64.Mat4ToQuat(rot.Mat4()).Normalize(),
	}
}

// Matrix returns the local-to-world matrix of the transform
func (t Transform) Matrix() mgl64.Mat4 {
	return mgl64.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z()).Mul4(t.Rotation.Normalize().Mat4())
}

// Apply maps a local point into the space the transform is expressed in
func (t Transform) Apply(local mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(local).Add(t.Position)
}

// ApplyInverse maps a point back into local space
func (t Transform) ApplyInverse(point mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Conjugate().Rotate(point.Sub(t.Position))
}

// Mul composes t (parent) with local (child): the result maps child-local
// points straight into t's space.
func (t Transform) Mul(local Transform) Transform {
	return Transform{
		Position: t.Apply(local.Position),
		Rotation: t.Rotation.Mul(local.Rotation).Normalize(),
	}
}

// Inverse returns the transform that undoes t
func (t Transform) Inverse() Transform {
	inv := t.Rotation.Conjugate()
	return Transform{
		Position: inv.Rotate(t.Position.Mul(-1)),
		Rotation: inv,
	}
}

// IsFinite reports whether neither position nor rotation holds NaN or Inf
func (t Transform) IsFinite() bool {
	return vecFinite(t.Position) && vecFinite(t.Rotation.V) && finite(t.Rotation.W)
}

// LerpVec3 linearly interpolates a -> b. f == 0 returns a and f == 1 returns b
// exactly.
func LerpVec3(a, b mgl64.Vec3, f float64) mgl64.Vec3 {
	switch f {
	case 0:
		return a
	case 1:
		return b
	}
	return a.Add(b.Sub(a).Mul(f))
}

// Slerp interpolates a -> b along the shortest arc. f == 0 returns a and
// f == 1 returns b exactly.
func Slerp(a, b mgl64.Quat, f float64) mgl64.Quat {
	switch f {
	case 0:
		return a
	case 1:
		return b
	}

	// q and -q are the same rotation; take the short way round
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl64.QuatSlerp(a, b, f).Normalize()
}

// Interpolate blends two transforms, linearly for the position and spherically
// for the rotation.
func Interpolate(previous, current Transform, f float64) Transform {
	return Transform{
		Position: LerpVec3(previous.Position, current.Position, f),
		Rotation: Slerp(previous.Rotation, current.Rotation, f),
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func vecFinite(v mgl64.Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}
