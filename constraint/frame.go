package constraint

import (
	"math"

	"github.com/akmonengine/ogrenewt/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// GrammSchmidt builds an orthonormal basis around dir. The columns are
// front (dir normalized), up and right; the helper axis is Y unless dir is
// nearly parallel to it, then X.
func GrammSchmidt(dir mgl64.Vec3) mgl64.Mat3 {
	front := mgl64.Vec3{1, 0, 0}
	if l := dir.Len(); l > 1e-12 && !math.IsInf(l, 0) && !math.IsNaN(l) {
		front = dir.Mul(1 / l)
	}

	helper := mgl64.Vec3{0, 1, 0}
	if math.Abs(front.Dot(helper)) > 0.999 {
		helper = mgl64.Vec3{1, 0, 0}
	}
	right := front.Cross(helper).Normalize()
	up := right.Cross(front)

	return mgl64.Mat3FromCols(front, up, right)
}

// PinFrame returns the world frame whose origin is pin and whose front axis
// is dir
func PinFrame(pin, dir mgl64.Vec3) actor.Transform {
	basis := GrammSchmidt(dir)
	return actor.Transform{
		Position: pin,
		Rotation: mgl64.Mat4ToQuat(basis.Mat4()).Normalize(),
	}
}

// PinAndDirToLocal expresses the pin frame in the local space of the child
// and of the parent. A parent at the identity stands for the world.
func PinAndDirToLocal(pin, dir mgl64.Vec3, child, parent actor.Transform) (local0, local1 actor.Transform) {
	frame := PinFrame(pin, dir)
	return GlobalToLocal(frame, child), GlobalToLocal(frame, parent)
}

// LocalToGlobal maps a frame local to body into world space
func LocalToGlobal(local, body actor.Transform) actor.Transform {
	return body.Mul(local)
}

// GlobalToLocal maps a world frame into the local space of body
func GlobalToLocal(global, body actor.Transform) actor.Transform {
	return body.Inverse().Mul(global)
}

// Axes returns the front, up and right axes of frame
func Axes(frame actor.Transform) (front, up, right mgl64.Vec3) {
	return frame.Rotation.Rotate(mgl64.Vec3{1, 0, 0}),
		frame.Rotation.Rotate(mgl64.Vec3{0, 1, 0}),
		frame.Rotation.Rotate(mgl64.Vec3{0, 0, 1})
}

// angleAbout returns the signed angle turning from onto to about axis
func angleAbout(from, to, axis mgl64.Vec3) float64 {
	return math.Atan2(axis.Dot(from.Cross(to)), from.Dot(to))
}
