package ogrenewt

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/akmonengine/ogrenewt/actor"
	"github.com/akmonengine/ogrenewt/internal/newton"
	"github.com/go-gl/mathgl/mgl64"
)

// PlayerDef describes the capsule of a player controller
type PlayerDef struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
	Mass        float64
	Radius      float64
	// Height is the full standing height, caps included
	Height     float64
	StepHeight float64
}

const (
	playerOnFloor uint32 = 1 << iota
	playerFreeFall
	playerCrouched
)

// PlayerControllerBody is a character capsule steered by forward and side
// speeds and a heading. The native controller consumes them every step.
type PlayerControllerBody struct {
	*Body

	def    PlayerDef
	player atomic.Pointer[newton.PlayerController]
	state  atomic.Uint32

	moveMu      sync.Mutex
	startYaw    float64
	heading     float64
	forward     float64
	side        float64
	canJump     bool
	walkSpeed   float64
	jumpSpeed   float64
	offset      mgl64.Vec3
	recreations int
}

// CreatePlayerController creates a player standing at def.Position and
// facing the yaw of def.Orientation
func (w *World) CreatePlayerController(name string, def PlayerDef) *PlayerControllerBody {
	if def.Orientation == (mgl64.Quat{}) {
		def.Orientation = mgl64.QuatIdent()
	}
	def.Orientation = def.Orientation.Normalize()
	pose := actor.Transform{Position: def.Position, Rotation: def.Orientation}

	p := &PlayerControllerBody{
		Body:      w.newBody(KindPlayer, name, nil, pose),
		def:       def,
		startYaw:  yawOf(def.Orientation),
		canJump:   true,
		walkSpeed: 3,
		jumpSpeed: 5,
	}
	w.install(p, func() *newton.Body {
		return p.build()
	})
	return p
}

// build creates the native controller; it runs under the world lock
func (p *PlayerControllerBody) build() *newton.Body {
	w := p.world
	p.moveMu.Lock()
	def := p.def
	p.moveMu.Unlock()

	pc := w.native.CreatePlayerController(def.Mass, def.Radius, def.Height, def.StepHeight,
		actor.Transform{Position: def.Position, Rotation: def.Orientation})
	pc.SetGravity(p.Gravity())

	p.moveMu.Lock()
	if p.offset != (mgl64.Vec3{}) {
		pc.SetCollisionOffset(p.offset)
	}
	// a rebuilt controller faces its start yaw again
	p.heading = p.startYaw
	pc.SetForwardSpeed(p.forward)
	pc.SetLateralSpeed(p.side)
	pc.SetHeadingAngle(p.heading)
	p.moveMu.Unlock()

	p.player.Store(pc)

	w.sceneMu.Lock()
	p.collision = pc.Body().Collision()
	w.sceneMu.Unlock()
	p.snapshot(pc)
	return pc.Body()
}

// yawOf returns the heading that turns -Z onto the forward axis of q
func yawOf(q mgl64.Quat) float64 {
	f := q.Rotate(mgl64.Vec3{0, 0, -1})
	return wrapAngle(math.Atan2(-f.X(), -f.Z()))
}

// wrapAngle brings a into [0, 2π)
func wrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// refresh copies the controller state after a step; it runs under the
// world lock
func (p *PlayerControllerBody) refresh() {
	if pc := p.player.Load(); pc != nil {
		p.snapshot(pc)
	}
}

func (p *PlayerControllerBody) snapshot(pc *newton.PlayerController) {
	var state uint32
	if pc.IsOnFloor() {
		state |= playerOnFloor
	}
	if pc.IsInFreeFall() {
		state |= playerFreeFall
	}
	if pc.IsCrouched() {
		state |= playerCrouched
	}
	p.state.Store(state)
}

// controller runs fn against the native controller under the world lock
func (p *PlayerControllerBody) controller(fn func(pc *newton.PlayerController)) {
	if p.destroyed.Load() {
		return
	}
	p.world.Exec(func() {
		if pc := p.player.Load(); pc != nil && p.native.Load() != nil {
			fn(pc)
		}
	})
}

// Move sets the planar speeds and turns the heading by headingDelta. The
// body itself moves during the next steps.
func (p *PlayerControllerBody) Move(forward, side, headingDelta float64) {
	p.moveMu.Lock()
	p.forward = forward
	p.side = side
	p.heading = wrapAngle(p.heading + headingDelta)
	heading := p.heading
	p.moveMu.Unlock()

	p.controller(func(pc *newton.PlayerController) {
		pc.SetForwardSpeed(forward)
		pc.SetLateralSpeed(side)
		pc.SetHeadingAngle(heading)
	})
}

// Walk moves at the walk speed scaled by the two axes
func (p *PlayerControllerBody) Walk(forwardAxis, sideAxis, headingDelta float64) {
	speed := p.WalkSpeed()
	p.Move(forwardAxis*speed, sideAxis*speed, headingDelta)
}

// Stop zeroes the speeds and keeps the heading
func (p *PlayerControllerBody) Stop() {
	p.Move(0, 0, 0)
}

// Heading returns the yaw in [0, 2π)
func (p *PlayerControllerBody) Heading() float64 {
	p.moveMu.Lock()
	defer p.moveMu.Unlock()
	return p.heading
}

// Speeds returns the forward and side speeds last given to Move
func (p *PlayerControllerBody) Speeds() (forward, side float64) {
	p.moveMu.Lock()
	defer p.moveMu.Unlock()
	return p.forward, p.side
}

// Jump launches the player at the jump speed. It reports false when jumping
// is disabled or the player is not on the floor.
func (p *PlayerControllerBody) Jump() bool {
	if !p.CanJump() || !p.IsOnFloor() {
		return false
	}
	speed := p.JumpSpeed()
	p.controller(func(pc *newton.PlayerController) { pc.Jump(speed) })
	return true
}

func (p *PlayerControllerBody) Crouch(crouched bool) {
	p.controller(func(pc *newton.PlayerController) {
		pc.SetCrouch(crouched)
		p.snapshot(pc)
	})
}

func (p *PlayerControllerBody) IsOnFloor() bool    { return p.state.Load()&playerOnFloor != 0 }
func (p *PlayerControllerBody) IsInFreeFall() bool { return p.state.Load()&playerFreeFall != 0 }
func (p *PlayerControllerBody) IsCrouched() bool   { return p.state.Load()&playerCrouched != 0 }

func (p *PlayerControllerBody) CanJump() bool {
	p.moveMu.Lock()
	defer p.moveMu.Unlock()
	return p.canJump
}

func (p *PlayerControllerBody) SetCanJump(canJump bool) {
	p.moveMu.Lock()
	p.canJump = canJump
	p.moveMu.Unlock()
}

func (p *PlayerControllerBody) WalkSpeed() float64 {
	p.moveMu.Lock()
	defer p.moveMu.Unlock()
	return p.walkSpeed
}

func (p *PlayerControllerBody) SetWalkSpeed(speed float64) {
	p.moveMu.Lock()
	p.walkSpeed = speed
	p.moveMu.Unlock()
}

func (p *PlayerControllerBody) JumpSpeed() float64 {
	p.moveMu.Lock()
	defer p.moveMu.Unlock()
	return p.jumpSpeed
}

func (p *PlayerControllerBody) SetJumpSpeed(speed float64) {
	p.moveMu.Lock()
	p.jumpSpeed = speed
	p.moveMu.Unlock()
}

// SetGravity sets the gravity the controller falls with
func (p *PlayerControllerBody) SetGravity(gravity mgl64.Vec3) {
	p.Body.SetGravity(gravity)
	p.controller(func(pc *newton.PlayerController) { pc.SetGravity(gravity) })
}

// SetCollisionPositionOffset shifts the capsule from the body origin. The
// offset survives ReCreatePlayer.
func (p *PlayerControllerBody) SetCollisionPositionOffset(offset mgl64.Vec3) {
	p.moveMu.Lock()
	p.offset = offset
	p.moveMu.Unlock()

	p.controller(func(pc *newton.PlayerController) {
		pc.SetCollisionOffset(offset)
		p.world.sceneMu.Lock()
		p.collision = pc.Body().Collision()
		p.world.sceneMu.Unlock()
	})
}

func (p *PlayerControllerBody) CollisionPositionOffset() mgl64.Vec3 {
	p.moveMu.Lock()
	defer p.moveMu.Unlock()
	return p.offset
}

// ReCreatePlayer rebuilds the native controller at a new start pose. Asking
// for the pose the player was last built with does nothing and reports
// false.
func (p *PlayerControllerBody) ReCreatePlayer(position mgl64.Vec3, orientation mgl64.Quat) bool {
	if p.destroyed.Load() {
		return false
	}
	orientation = orientation.Normalize()

	p.moveMu.Lock()
	if p.def.Position == position && p.def.Orientation == orientation {
		p.moveMu.Unlock()
		return false
	}
	p.def.Position = position
	p.def.Orientation = orientation
	p.startYaw = yawOf(orientation)
	// the rebuilt controller starts at rest, facing its start yaw
	p.forward, p.side = 0, 0
	p.recreations++
	p.moveMu.Unlock()

	w := p.world
	w.Exec(func() {
		if p.native.Load() == nil {
			return
		}
		w.unbind(p.Body)
		p.player.Store(nil)
		nb := p.build()
		w.bind(p.Body, nb)

		w.sceneMu.Lock()
		p.pose = poseAt(nb.Matrix())
		w.sceneMu.Unlock()
	})
	return true
}

// Recreations counts the native rebuilds done by ReCreatePlayer
func (p *PlayerControllerBody) Recreations() int {
	p.moveMu.Lock()
	defer p.moveMu.Unlock()
	return p.recreations
}
