package ogrenewt

import (
	"sync"
	"sync/atomic"

	"github.com/akmonengine/ogrenewt/actor"
	"github.com/akmonengine/ogrenewt/internal/newton"
	"github.com/akmonengine/ogrenewt/scene"
	"github.com/go-gl/mathgl/mgl64"
)

// Kind tells the variants of PhysicsBody apart
type Kind uint8

const (
	KindRigid Kind = iota
	KindKinematic
	KindTrigger
	KindPlayer
)

func (k Kind) String() string {
	switch k {
	case KindRigid:
		return "rigid"
	case KindKinematic:
		return "kinematic"
	case KindTrigger:
		return "trigger"
	case KindPlayer:
		return "player"
	}
	return "unknown"
}

// PhysicsBody is implemented by *Body, *KinematicBody, *TriggerBody and
// *PlayerControllerBody. Kind tells which one it is.
type PhysicsBody interface {
	Kind() Kind
	Handle() Handle
	Name() string
	// Core returns the rigid body every variant is built on
	Core() *Body
	physicsBody()
}

// PoseState is the double-buffered pose of a body. Current is written by the
// physics step, Previous is the Current of the step before, Rendered is the
// interpolation last pushed to the scene node.
type PoseState struct {
	CurrentPosition     mgl64.Vec3
	CurrentOrientation  mgl64.Quat
	PreviousPosition    mgl64.Vec3
	PreviousOrientation mgl64.Quat
	RenderedPosition    mgl64.Vec3
	RenderedOrientation mgl64.Quat
}

func poseAt(t actor.Transform) PoseState {
	return PoseState{
		CurrentPosition:     t.Position,
		CurrentOrientation:  t.Rotation,
		PreviousPosition:    t.Position,
		PreviousOrientation: t.Rotation,
		RenderedPosition:    t.Position,
		RenderedOrientation: t.Rotation,
	}
}

// ContactPoint is one point of a contact, in world space
type ContactPoint struct {
	Position    mgl64.Vec3
	Penetration float64
}

// ContactEvent reports one active contact of the body. Normal points away
// from the body. Events are not retained after the callback returns.
type ContactEvent struct {
	Other  PhysicsBody
	Points []ContactPoint
	Normal mgl64.Vec3
}

type (
	// ForceCallback replaces the standard force callback. It runs once per
	// substep while the body is awake, possibly on a worker goroutine.
	ForceCallback func(body PhysicsBody, timestep float64, threadIndex int)
	// NodeUpdateNotify runs after every UpdateNode that wrote the node
	NodeUpdateNotify func(body PhysicsBody)
	ContactCallback  func(body PhysicsBody, contact ContactEvent)
)

type globalForce struct {
	force mgl64.Vec3
	point mgl64.Vec3
}

// Body is a rigid body. All mutators are no-ops once the body is destroyed
// and getters return zero values.
//
// Mutators of the native state go through World.Exec; getters of the native
// state are meant for physics callbacks or for when nothing steps.
type Body struct {
	world *World
	self  PhysicsBody

	handle Handle
	kind   Kind
	name   string

	native    atomic.Pointer[newton.Body]
	destroyed atomic.Bool
	debug     atomic.Bool

	// guarded by world.sceneMu
	pose                PoseState
	promoted            bool
	collision           *actor.Collision
	node                scene.Node
	updateRotation      bool
	staticUpdateAllowed bool
	notify              NodeUpdateNotify
	contactCallback     ContactCallback

	// guarded by world.stepMu
	forceCallback newton.ForceAndTorqueCallback

	mu            sync.Mutex
	materialGroup string
	gravity       mgl64.Vec3
	accumulated   []globalForce
}

func (w *World) newBody(kind Kind, name string, collision *actor.Collision, pose actor.Transform) *Body {
	pose.Rotation = pose.Rotation.Normalize()
	b := &Body{
		world:          w,
		kind:           kind,
		name:           name,
		collision:      collision,
		pose:           poseAt(pose),
		updateRotation: true,
		gravity:        w.config.GravityVec(),
	}
	b.debug.Store(true)
	return b
}

// install registers the body and creates its native counterpart
func (w *World) install(self PhysicsBody, create func() *newton.Body) {
	b := self.Core()
	b.self = self
	b.handle = w.bodies.Insert(self)
	w.Exec(func() {
		if !w.bodies.Contains(b.handle) {
			return
		}
		w.bind(b, create())
	})
}

// bind makes nb the native body of b
func (w *World) bind(b *Body, nb *newton.Body) {
	nb.UserData.Store(uint64(b.handle))
	nb.SetTransformCallback(w.onTransform)
	nb.SetDestructorCallback(w.onNativeDestroyed)
	nb.SetForceAndTorqueCallback(b.forceCallback)
	b.native.Store(nb)
}

// unbind destroys the native body of b without running the adapter side
// of the destruction
func (w *World) unbind(b *Body) {
	nb := b.native.Swap(nil)
	if nb == nil {
		return
	}
	nb.UserData.Store(0)
	w.native.DestroyBody(nb)
}

func (w *World) onTransform(nb *newton.Body, transform actor.Transform, _ int) {
	b := w.resolve(nb)
	if b == nil {
		return
	}
	b.promote(transform)
}

// CreateRigidBody creates a dynamic body, or a static one when mass is not
// positive. The body retains collision.
func (w *World) CreateRigidBody(name string, collision *actor.Collision, mass float64, pose actor.Transform) *Body {
	b := w.newBody(KindRigid, name, collision, pose)
	bodyType := newton.BodyTypeDynamic
	if mass <= 0 || collision.IsStaticOnly() {
		bodyType = newton.BodyTypeStatic
	}
	w.install(b, func() *newton.Body {
		nb := w.native.CreateBody(collision, pose, bodyType)
		nb.SetMassProperties(mass, collision)
		return nb
	})
	return b
}

func (b *Body) physicsBody() {}

func (b *Body) Core() *Body    { return b }
func (b *Body) Kind() Kind     { return b.kind }
func (b *Body) Handle() Handle { return b.handle }
func (b *Body) Name() string   { return b.name }
func (b *Body) World() *World  { return b.world }

// Native returns the native body, nil once destroyed
func (b *Body) Native() *newton.Body { return b.native.Load() }

func (b *Body) IsDestroyed() bool { return b.destroyed.Load() }

func (b *Body) MaterialGroup() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.materialGroup
}

// SetMaterialGroup names the group the debugger picks the body color from
func (b *Body) SetMaterialGroup(group string) {
	b.mu.Lock()
	b.materialGroup = group
	b.mu.Unlock()
}

// SetDebug shows or hides the body in the debugger
func (b *Body) SetDebug(enabled bool) { b.debug.Store(enabled) }
func (b *Body) IsDebug() bool         { return b.debug.Load() }

// Collision returns the collision the body was last built with
func (b *Body) Collision() *actor.Collision {
	b.world.sceneMu.Lock()
	defer b.world.sceneMu.Unlock()
	return b.collision
}

// update runs fn against the native body under the world lock
func (b *Body) update(fn func(nb *newton.Body)) {
	if b.destroyed.Load() {
		return
	}
	b.world.Exec(func() {
		if nb := b.native.Load(); nb != nil {
			fn(nb)
		}
	})
}

// Destroy detaches the node and destroys the native body with its joints.
// The handle stops resolving immediately; the native destruction waits for
// an in-flight step or sync. Destroying twice does nothing.
func (b *Body) Destroy() {
	if !b.destroyed.CompareAndSwap(false, true) {
		return
	}
	w := b.world

	w.sceneMu.Lock()
	b.node = nil
	w.sceneMu.Unlock()

	w.bodies.Remove(b.handle)
	w.Exec(func() {
		w.unbind(b)
	})
}

// promote stores the pose of a finished step
func (b *Body) promote(transform actor.Transform) {
	if !transform.IsFinite() {
		b.world.logger.Debugf("body %q: rejected non-finite pose %v", b.name, transform.Position)
		return
	}

	b.world.sceneMu.Lock()
	b.pose.PreviousPosition = b.pose.CurrentPosition
	b.pose.PreviousOrientation = b.pose.CurrentOrientation
	b.pose.CurrentPosition = transform.Position
	b.pose.CurrentOrientation = transform.Rotation
	b.promoted = true
	b.world.sceneMu.Unlock()
}

// Pose returns a copy of the pose double buffer
func (b *Body) Pose() PoseState {
	b.world.sceneMu.Lock()
	defer b.world.sceneMu.Unlock()
	return b.pose
}

// PositionOrientation returns the pose of the last step
func (b *Body) PositionOrientation() (mgl64.Vec3, mgl64.Quat) {
	b.world.sceneMu.Lock()
	defer b.world.sceneMu.Unlock()
	return b.pose.CurrentPosition, b.pose.CurrentOrientation
}

// RenderedPose returns the pose last pushed to the node
func (b *Body) RenderedPose() actor.Transform {
	b.world.sceneMu.Lock()
	defer b.world.sceneMu.Unlock()
	return actor.Transform{Position: b.pose.RenderedPosition, Rotation: b.pose.RenderedOrientation}
}

// SetPositionOrientation teleports the body. Previous and current pose both
// take the new value, and a static node bound to the body is re-derived once
// on the next UpdateNode.
func (b *Body) SetPositionOrientation(position mgl64.Vec3, orientation mgl64.Quat) {
	t := actor.Transform{Position: position, Rotation: orientation.Normalize()}
	if !t.IsFinite() {
		b.world.logger.Debugf("body %q: rejected non-finite teleport %v", b.name, position)
		return
	}
	b.update(func(nb *newton.Body) {
		nb.SetMatrix(t)

		b.world.sceneMu.Lock()
		b.pose = poseAt(t)
		b.staticUpdateAllowed = true
		b.world.sceneMu.Unlock()
	})
}

// AttachNode binds node to the body and pushes the current pose into it.
// The node is not owned: detaching or destroying the body leaves it alive.
func (b *Body) AttachNode(node scene.Node, updateRotation bool) {
	if node == nil || b.destroyed.Load() {
		return
	}
	b.world.sceneMu.Lock()
	defer b.world.sceneMu.Unlock()
	b.node = node
	b.updateRotation = updateRotation
	b.writeNode(1)
}

func (b *Body) DetachNode() {
	b.world.sceneMu.Lock()
	b.node = nil
	b.world.sceneMu.Unlock()
}

// Node returns the bound scene node, nil when unbound
func (b *Body) Node() scene.Node {
	b.world.sceneMu.Lock()
	defer b.world.sceneMu.Unlock()
	return b.node
}

// UpdateNode interpolates the pose by fraction and writes it into the bound
// node, then runs the node notify and contact callbacks.
func (b *Body) UpdateNode(fraction float64) {
	if b.destroyed.Load() {
		return
	}
	w := b.world
	w.beginSync()
	defer w.endSync()

	w.sceneMu.Lock()
	wrote := b.writeNode(fraction)
	notify, onContact := b.notify, b.contactCallback
	rendered := actor.Transform{Position: b.pose.RenderedPosition, Rotation: b.pose.RenderedOrientation}
	w.sceneMu.Unlock()

	if wrote && notify != nil {
		notify(b.self)
	}
	if onContact != nil {
		b.dispatchContacts(onContact)
	}
	// deformable vertices follow the node, after every callback has run
	if shape, ok := b.Collision().Shape().(actor.Deformable); ok && wrote {
		shape.SyncDeformation(rendered)
	}
}

// writeNode must be called with sceneMu held
func (b *Body) writeNode(fraction float64) bool {
	fraction = min(max(fraction, 0), 1)
	b.pose.RenderedPosition = actor.LerpVec3(b.pose.PreviousPosition, b.pose.CurrentPosition, fraction)
	if b.updateRotation {
		b.pose.RenderedOrientation = actor.Slerp(b.pose.PreviousOrientation, b.pose.CurrentOrientation, fraction)
	}
	if b.node == nil {
		return false
	}

	parent := scene.Identity()
	if p := b.node.Parent(); p != nil {
		if b.node.IsStatic() {
			parent = p.Derived(b.staticUpdateAllowed)
		} else {
			parent = p.Derived(false)
		}
	}

	inverse := parent.Orientation.Conjugate()
	local := inverse.Rotate(b.pose.RenderedPosition.Sub(parent.Position))
	for i := range 3 {
		if parent.Scale[i] != 0 {
			local[i] /= parent.Scale[i]
		}
	}
	b.node.SetPosition(local)
	if b.updateRotation {
		b.node.SetOrientation(inverse.Mul(b.pose.RenderedOrientation).Normalize())
	}

	if b.node.IsStatic() && b.staticUpdateAllowed {
		b.node.Derived(true)
		b.staticUpdateAllowed = false
	}

	return true
}

// Contacts returns the contacts found by the last step, with normals
// pointing away from the body
func (b *Body) Contacts() []ContactEvent {
	nb := b.native.Load()
	if nb == nil {
		return nil
	}
	var events []ContactEvent
	for _, c := range nb.ContactJoints() {
		other := b.world.resolve(c.Other(nb))
		if other == nil {
			continue
		}
		points := make([]ContactPoint, len(c.Points))
		for i, p := range c.Points {
			points[i] = ContactPoint{Position: p.Position, Penetration: p.Penetration}
		}
		events = append(events, ContactEvent{Other: other.self, Points: points, Normal: c.NormalFrom(nb)})
	}
	return events
}

func (b *Body) dispatchContacts(onContact ContactCallback) {
	for _, event := range b.Contacts() {
		onContact(b.self, event)
	}
}

// SetNodeUpdateNotify registers a callback run after each node write
func (b *Body) SetNodeUpdateNotify(notify NodeUpdateNotify) {
	b.world.sceneMu.Lock()
	b.notify = notify
	b.world.sceneMu.Unlock()
}

// SetContactCallback registers a callback run from UpdateNode for every
// contact found by the last step
func (b *Body) SetContactCallback(callback ContactCallback) {
	b.world.sceneMu.Lock()
	b.contactCallback = callback
	b.world.sceneMu.Unlock()
}

func (b *Body) Gravity() mgl64.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gravity
}

// SetGravity sets the gravity applied by the standard force callback
func (b *Body) SetGravity(gravity mgl64.Vec3) {
	b.mu.Lock()
	b.gravity = gravity
	b.mu.Unlock()
}

func (b *Body) setForceCallback(cb newton.ForceAndTorqueCallback) {
	b.update(func(nb *newton.Body) {
		b.forceCallback = cb
		nb.SetForceAndTorqueCallback(cb)
	})
}

// SetStandardForceCallback applies mass times gravity every substep, plus the
// forces queued with AddGlobalForceAccumulate
func (b *Body) SetStandardForceCallback() {
	w := b.world
	b.setForceCallback(func(nb *newton.Body, _ float64, _ int) {
		if body := w.resolve(nb); body != nil {
			body.applyStandardForces(nb)
		}
	})
}

// SetCustomForceAndTorqueCallback replaces the force callback; nil removes it
func (b *Body) SetCustomForceAndTorqueCallback(callback ForceCallback) {
	if callback == nil {
		b.setForceCallback(nil)
		return
	}
	w := b.world
	b.setForceCallback(func(nb *newton.Body, timestep float64, threadIndex int) {
		if body := w.resolve(nb); body != nil {
			callback(body.self, timestep, threadIndex)
		}
	})
}

func (b *Body) applyStandardForces(nb *newton.Body) {
	b.mu.Lock()
	gravity := b.gravity
	queued := b.accumulated
	b.accumulated = nil
	b.mu.Unlock()

	nb.AddForce(gravity.Mul(nb.Mass()))
	for _, f := range queued {
		addGlobalForce(nb, f.force, f.point)
	}
}

// AddGlobalForceAccumulate queues a world force at a world point for the next
// run of the standard force callback. Each queued force is applied once.
func (b *Body) AddGlobalForceAccumulate(force, point mgl64.Vec3) {
	b.mu.Lock()
	b.accumulated = append(b.accumulated, globalForce{force: force, point: point})
	b.mu.Unlock()
}

func addGlobalForce(nb *newton.Body, force, point mgl64.Vec3) {
	nb.AddForce(force)
	nb.AddTorque(point.Sub(nb.WorldCenterOfMass()).Cross(force))
}

// AddGlobalForce applies a world force at a world point: the force itself plus
// the torque it induces about the center of mass
func (b *Body) AddGlobalForce(force, point mgl64.Vec3) {
	if nb := b.native.Load(); nb != nil {
		addGlobalForce(nb, force, point)
	}
}

// AddLocalForce applies a body space force at a body space point
func (b *Body) AddLocalForce(force, point mgl64.Vec3) {
	nb := b.native.Load()
	if nb == nil {
		return
	}
	t := nb.Matrix()
	addGlobalForce(nb, t.Rotation.Rotate(force), t.Apply(point))
}

// AddForce applies a world force at the center of mass
func (b *Body) AddForce(force mgl64.Vec3) {
	if nb := b.native.Load(); nb != nil {
		nb.AddForce(force)
	}
}

func (b *Body) AddTorque(torque mgl64.Vec3) {
	if nb := b.native.Load(); nb != nil {
		nb.AddTorque(torque)
	}
}

// SetBodyAngularVelocity snaps the angular velocity to omega with a pure
// angular impulse
func (b *Body) SetBodyAngularVelocity(omega mgl64.Vec3, timestep float64) {
	b.update(func(nb *newton.Body) {
		impulse := nb.InertiaWorld().Mul3x1(omega.Sub(nb.Omega()))
		nb.ApplyImpulsePair(mgl64.Vec3{}, impulse, timestep)
	})
}

// AddImpulse changes the velocity of the world point by deltaVelocity
func (b *Body) AddImpulse(deltaVelocity, point mgl64.Vec3) {
	timestep := b.world.config.Timestep()
	b.update(func(nb *newton.Body) {
		nb.AddImpulse(deltaVelocity, point, timestep)
	})
}

// AppliedForce returns the net force integrated in the last substep
func (b *Body) AppliedForce() mgl64.Vec3 {
	if nb := b.native.Load(); nb != nil {
		return nb.LastAppliedForce()
	}
	return mgl64.Vec3{}
}

func (b *Body) Mass() float64 {
	if nb := b.native.Load(); nb != nil {
		return nb.Mass()
	}
	return 0
}

// SetMassMatrix sets the mass and the diagonal inertia
func (b *Body) SetMassMatrix(mass float64, inertia mgl64.Vec3) {
	b.update(func(nb *newton.Body) {
		nb.SetMassMatrix(mass, inertia.X(), inertia.Y(), inertia.Z())
	})
}

func (b *Body) CenterOfMass() mgl64.Vec3 {
	if nb := b.native.Load(); nb != nil {
		return nb.CenterOfMass()
	}
	return mgl64.Vec3{}
}

func (b *Body) SetCenterOfMass(com mgl64.Vec3) {
	b.update(func(nb *newton.Body) { nb.SetCenterOfMass(com) })
}

func (b *Body) Velocity() mgl64.Vec3 {
	if nb := b.native.Load(); nb != nil {
		return nb.Velocity()
	}
	return mgl64.Vec3{}
}

func (b *Body) SetVelocity(velocity mgl64.Vec3) {
	b.update(func(nb *newton.Body) { nb.SetVelocity(velocity) })
}

func (b *Body) Omega() mgl64.Vec3 {
	if nb := b.native.Load(); nb != nil {
		return nb.Omega()
	}
	return mgl64.Vec3{}
}

func (b *Body) SetOmega(omega mgl64.Vec3) {
	b.update(func(nb *newton.Body) { nb.SetOmega(omega) })
}

func (b *Body) IsSleeping() bool {
	if nb := b.native.Load(); nb != nil {
		return nb.IsSleeping()
	}
	return false
}

func (b *Body) SetAutoSleep(enabled bool) {
	b.update(func(nb *newton.Body) { nb.SetAutoSleep(enabled) })
}

func (b *Body) SetRestitution(restitution float64) {
	b.update(func(nb *newton.Body) { nb.Material.Restitution = restitution })
}

func (b *Body) SetFriction(static, dynamic float64) {
	b.update(func(nb *newton.Body) {
		nb.Material.StaticFriction = static
		nb.Material.DynamicFriction = dynamic
	})
}

func (b *Body) SetDamping(linear, angular float64) {
	b.update(func(nb *newton.Body) {
		nb.Material.LinearDamping = linear
		nb.Material.AngularDamping = angular
	})
}
