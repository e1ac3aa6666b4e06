package newton

import (
	"math"

	"github.com/akmonengine/ogrenewt/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// PlayerState is the floor state of a player controller
type PlayerState int

const (
	PlayerOnFloor PlayerState = iota
	PlayerInFreeFall
)

// crouchFactor scales the capsule height while crouched
const crouchFactor = 0.5

// PlayerController drives an upright kinematic capsule. Forward and lateral
// speeds are applied in the heading frame; gravity and jumps are integrated
// by the controller itself.
type PlayerController struct {
	body *Body

	offset     mgl64.Vec3
	radius     float64
	height     float64
	stepHeight float64

	forwardSpeed float64
	lateralSpeed float64
	heading      float64
	gravity      mgl64.Vec3

	verticalSpeed float64
	jumpSpeed     float64
	jumpPending   bool
	crouched      bool
	state         PlayerState
}

// CreatePlayerController creates the capsule body of a player standing at
// transform. height is the full standing height, caps included.
func (w *World) CreatePlayerController(mass, radius, height, stepHeight float64, transform actor.Transform) *PlayerController {
	capsule := &actor.Capsule{Radius: radius, Height: math.Max(height-2*radius, 0)}
	collision := actor.NewCollision(capsule)
	body := w.CreateBody(collision, transform, BodyTypeKinematic)
	collision.Release()
	body.SetMassMatrix(mass, 1, 1, 1)
	body.SetAutoSleep(false)

	p := &PlayerController{
		body:       body,
		radius:     radius,
		height:     height,
		stepHeight: stepHeight,
		gravity:    mgl64.Vec3{0, -9.81, 0},
		state:      PlayerInFreeFall,
	}
	w.players = append(w.players, p)
	return p
}

func (p *PlayerController) Body() *Body { return p.body }

// SetCollisionOffset moves the capsule away from the body origin by wrapping it
// in a single child compound
func (p *PlayerController) SetCollisionOffset(offset mgl64.Vec3) {
	p.offset = offset
	capsule := &actor.Capsule{Radius: p.radius, Height: math.Max(p.height-2*p.radius, 0)}
	var shape actor.ShapeInterface = capsule
	if offset != (mgl64.Vec3{}) {
		child := actor.NewTransform()
		child.Position = offset
		shape = &actor.Compound{Children: []actor.CompoundChild{{Shape: capsule, Offset: child}}}
	}
	collision := actor.NewCollision(shape)
	p.body.SetCollision(collision)
	collision.Release()
}

func (p *PlayerController) CollisionOffset() mgl64.Vec3 { return p.offset }

func (p *PlayerController) SetForwardSpeed(speed float64) { p.forwardSpeed = speed }
func (p *PlayerController) SetLateralSpeed(speed float64) { p.lateralSpeed = speed }
func (p *PlayerController) ForwardSpeed() float64         { return p.forwardSpeed }
func (p *PlayerController) LateralSpeed() float64         { return p.lateralSpeed }

// SetHeadingAngle sets the absolute yaw, in radians, about the world up axis
func (p *PlayerController) SetHeadingAngle(angle float64) { p.heading = angle }
func (p *PlayerController) HeadingAngle() float64         { return p.heading }

func (p *PlayerController) SetGravity(gravity mgl64.Vec3) { p.gravity = gravity }

// Jump launches the player at speed on the next update, if it stands on the
// floor by then
func (p *PlayerController) Jump(speed float64) {
	p.jumpSpeed = speed
	p.jumpPending = true
}

func (p *PlayerController) SetCrouch(crouched bool) { p.crouched = crouched }
func (p *PlayerController) IsCrouched() bool        { return p.crouched }
func (p *PlayerController) IsOnFloor() bool         { return p.state == PlayerOnFloor }
func (p *PlayerController) IsInFreeFall() bool      { return p.state == PlayerInFreeFall }

func (p *PlayerController) currentHeight() float64 {
	if p.crouched {
		return p.height * crouchFactor
	}
	return p.height
}

// probeFloor casts down from the capsule center and returns the floor height.
// The ray spans the standing half height so the floor stays in reach right
// after a crouch lowers the capsule.
func (p *PlayerController) probeFloor(w *World) (float64, bool) {
	half := p.height / 2
	start := p.body.transform.Position
	end := start.Sub(mgl64.Vec3{0, half + p.stepHeight, 0})

	floor, found := 0.0, false
	w.rayCast(start, end, p.body, func(b *Body, _ *actor.Collision, contact, _ mgl64.Vec3, _ int, t float64) float64 {
		if b.trigger {
			return 1
		}
		floor, found = contact.Y(), true
		return t
	}, nil)
	return floor, found
}

// update sets the body velocity for the coming substep
func (p *PlayerController) update(w *World, timestep float64) {
	if p.body.destroyed {
		return
	}

	floor, onFloor := p.probeFloor(w)
	if onFloor && p.verticalSpeed <= 0 {
		p.state = PlayerOnFloor
		p.verticalSpeed = 0
		// rest the capsule on the floor
		standY := floor + p.currentHeight()/2
		p.body.transform.Position[1] = standY
	} else {
		p.state = PlayerInFreeFall
		p.verticalSpeed += p.gravity.Y() * timestep
	}

	if p.jumpPending {
		if p.state == PlayerOnFloor {
			p.verticalSpeed = p.jumpSpeed
			p.state = PlayerInFreeFall
		}
		p.jumpPending = false
	}

	rotation := mgl64.QuatRotate(p.heading, mgl64.Vec3{0, 1, 0})
	planar := rotation.Rotate(mgl64.Vec3{p.lateralSpeed, 0, -p.forwardSpeed})
	p.body.velocity = mgl64.Vec3{planar.X(), p.verticalSpeed, planar.Z()}
	p.body.omega = mgl64.Vec3{}
	p.body.transform.Rotation = rotation
}
