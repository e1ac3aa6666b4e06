package ogrenewt

import (
	"math"

	"github.com/akmonengine/ogrenewt/actor"
	"github.com/akmonengine/ogrenewt/internal/newton"
	"github.com/go-gl/mathgl/mgl64"
)

// KinematicBody moves by the velocities it is given; forces and contacts
// never change them. Moving platforms and scripted actors use it.
type KinematicBody struct {
	*Body
}

// CreateKinematicBody creates a kinematic body holding a reference to collision
func (w *World) CreateKinematicBody(name string, collision *actor.Collision, pose actor.Transform) *KinematicBody {
	k := &KinematicBody{Body: w.newBody(KindKinematic, name, collision, pose)}
	w.install(k, func() *newton.Body {
		nb := w.native.CreateBody(collision, pose, newton.BodyTypeKinematic)
		nb.SetAutoSleep(false)
		return nb
	})
	return k
}

func (k *KinematicBody) SetKinematicVelocity(velocity mgl64.Vec3) {
	k.update(func(nb *newton.Body) { nb.SetVelocity(velocity) })
}

func (k *KinematicBody) SetKinematicOmega(omega mgl64.Vec3) {
	k.update(func(nb *newton.Body) { nb.SetOmega(omega) })
}

// SetTargetPose picks the velocities that bring the body to position and
// orientation after dt seconds
func (k *KinematicBody) SetTargetPose(position mgl64.Vec3, orientation mgl64.Quat, dt float64) {
	if dt <= 0 {
		return
	}
	k.update(func(nb *newton.Body) {
		current := nb.Matrix()
		nb.SetVelocity(position.Sub(current.Position).Mul(1 / dt))

		delta := orientation.Normalize().Mul(current.Rotation.Conjugate()).Normalize()
		if delta.W < 0 {
			delta = delta.Scale(-1)
		}
		sin := delta.V.Len()
		if sin < 1e-12 {
			nb.SetOmega(mgl64.Vec3{})
			return
		}
		angle := 2 * math.Atan2(sin, delta.W)
		nb.SetOmega(delta.V.Mul(angle / (sin * dt)))
	})
}

// SetCollidable takes the body in or out of collision detection
func (k *KinematicBody) SetCollidable(collidable bool) {
	k.update(func(nb *newton.Body) { nb.SetCollidable(collidable) })
}

func (k *KinematicBody) IsCollidable() bool {
	if nb := k.native.Load(); nb != nil {
		return nb.IsCollidable()
	}
	return false
}
