package newton

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/akmonengine/ogrenewt/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// BodyType represents the type of rigid body
type BodyType int

const (
	// BodyTypeDynamic bodies are affected by forces, contacts and joints
	BodyTypeDynamic BodyType = iota

	// BodyTypeStatic bodies never move and have infinite mass
	BodyTypeStatic

	// BodyTypeKinematic bodies move by their velocity only; forces and
	// contacts never change it
	BodyTypeKinematic
)

const (
	sleepTimeThreshold     = 0.1
	sleepVelocityThreshold = 0.05
)

// TransformCallback is invoked once per step for every body that moved
type TransformCallback func(body *Body, transform actor.Transform, threadIndex int)

// ForceAndTorqueCallback is invoked once per substep for every awake dynamic
// body. It is the only place where forces should be added.
type ForceAndTorqueCallback func(body *Body, timestep float64, threadIndex int)

// BodyDestructorCallback is invoked exactly once when the body is destroyed
type BodyDestructorCallback func(body *Body)

// Body is a native rigid body. Its UserData carries the adapter handle; the
// native side never holds a pointer into adapter memory.
type Body struct {
	world    *World
	UserData atomic.Uint64

	bodyType   BodyType
	trigger    bool
	collidable bool
	autoSleep  bool
	destroyed  bool

	collision *actor.Collision

	transform actor.Transform
	previous  actor.Transform
	aabb      actor.AABB

	// Linear motion
	velocity         mgl64.Vec3
	presolveVelocity mgl64.Vec3

	// Angular motion
	omega               mgl64.Vec3
	presolveOmega       mgl64.Vec3
	inertiaLocal        mgl64.Mat3
	inverseInertiaLocal mgl64.Mat3
	centerOfMass        mgl64.Vec3

	mass    float64
	invMass float64

	Material Material

	mu                sync.Mutex
	accumulatedForce  mgl64.Vec3
	accumulatedTorque mgl64.Vec3
	lastForce         mgl64.Vec3
	lastTorque        mgl64.Vec3
	contacts          []*ContactJoint

	isSleeping bool
	sleepTimer float64

	transformCallback TransformCallback
	forceCallback     ForceAndTorqueCallback
	destructor        BodyDestructorCallback
}

// Material holds the contact response parameters of a body
type Material struct {
	Restitution     float64 // 0 = no rebound, 1 = perfect restitution
	StaticFriction  float64
	DynamicFriction float64
	LinearDamping   float64
	AngularDamping  float64
}

func newBody(world *World, collision *actor.Collision, transform actor.Transform, bodyType BodyType) *Body {
	b := &Body{
		world:      world,
		bodyType:   bodyType,
		collidable: true,
		autoSleep:  true,
		collision:  collision.Retain(),
		transform:  transform,
		previous:   transform,
		Material: Material{
			StaticFriction:  0.6,
			DynamicFriction: 0.4,
		},
	}
	b.setInfiniteMass()
	b.updateAABB()
	return b
}

func (b *Body) setInfiniteMass() {
	b.mass = 0
	b.invMass = 0
	b.inertiaLocal = mgl64.Mat3{}
	b.inverseInertiaLocal = mgl64.Mat3{}
}

// SetMassMatrix sets the mass and the diagonal of the local inertia tensor.
// A mass of zero makes the body behave as static for the solver.
func (b *Body) SetMassMatrix(mass, ixx, iyy, izz float64) {
	if b.bodyType == BodyTypeStatic || mass <= 0 {
		b.setInfiniteMass()
		return
	}
	b.mass = mass
	b.invMass = 1.0 / mass
	b.inertiaLocal = mgl64.Diag3(mgl64.Vec3{ixx, iyy, izz})
	b.inverseInertiaLocal = invertDiagonal(b.inertiaLocal)
}

// SetMassProperties derives the inertia tensor and center of mass from the
// collision geometry
func (b *Body) SetMassProperties(mass float64, collision *actor.Collision) {
	if b.bodyType == BodyTypeStatic || mass <= 0 {
		b.setInfiniteMass()
		return
	}
	b.mass = mass
	b.invMass = 1.0 / mass
	b.inertiaLocal = collision.ComputeInertia(mass)
	b.centerOfMass = collision.CenterOfMass()
	if b.inertiaLocal.Det() == 0 {
		b.inverseInertiaLocal = mgl64.Mat3{}
		return
	}
	b.inverseInertiaLocal = b.inertiaLocal.Inv()
}

func invertDiagonal(m mgl64.Mat3) mgl64.Mat3 {
	var inv mgl64.Mat3
	for i := 0; i < 3; i++ {
		if v := m.At(i, i); v != 0 {
			inv.Set(i, i, 1.0/v)
		}
	}
	return inv
}

func (b *Body) World() *World        { return b.world }
func (b *Body) Type() BodyType       { return b.bodyType }
func (b *Body) Mass() float64        { return b.mass }
func (b *Body) InverseMass() float64 { return b.invMass }
func (b *Body) IsTrigger() bool      { return b.trigger }
func (b *Body) IsCollidable() bool   { return b.collidable }
func (b *Body) IsSleeping() bool     { return b.isSleeping }
func (b *Body) IsDestroyed() bool    { return b.destroyed }

// SetTrigger turns the body into a trigger volume: it still overlaps other
// bodies but never produces a contact response
func (b *Body) SetTrigger(trigger bool) { b.trigger = trigger }

// SetCollidable removes the body from collision detection when false
func (b *Body) SetCollidable(collidable bool) { b.collidable = collidable }

// SetAutoSleep allows the body to fall asleep once it rests
func (b *Body) SetAutoSleep(enabled bool) {
	b.autoSleep = enabled
	if !enabled {
		b.Awake()
	}
}

// Matrix returns the current transform of the body
func (b *Body) Matrix() actor.Transform { return b.transform }

// SetMatrix teleports the body. The transform callback is not invoked.
func (b *Body) SetMatrix(transform actor.Transform) {
	b.transform = transform
	b.previous = transform
	b.updateAABB()
	b.Awake()
}

func (b *Body) AABB() actor.AABB { return b.aabb }

func (b *Body) updateAABB() {
	b.aabb = b.collision.ComputeAABB(b.transform)
}

// Collision returns the geometry the body holds a reference to
func (b *Body) Collision() *actor.Collision { return b.collision }

// SetCollision swaps the geometry; the body retains the new collision and
// releases the old one
func (b *Body) SetCollision(collision *actor.Collision) {
	if collision == b.collision {
		return
	}
	old := b.collision
	b.collision = collision.Retain()
	old.Release()
	b.updateAABB()
}

// CenterOfMass returns the local center of mass
func (b *Body) CenterOfMass() mgl64.Vec3 { return b.centerOfMass }

// SetCenterOfMass overrides the local center of mass
func (b *Body) SetCenterOfMass(com mgl64.Vec3) { b.centerOfMass = com }

// WorldCenterOfMass returns the center of mass in world space
func (b *Body) WorldCenterOfMass() mgl64.Vec3 {
	return b.transform.Apply(b.centerOfMass)
}

func (b *Body) Velocity() mgl64.Vec3 { return b.velocity }
func (b *Body) Omega() mgl64.Vec3    { return b.omega }

func (b *Body) SetVelocity(v mgl64.Vec3) {
	b.velocity = v
	b.Awake()
}

func (b *Body) SetOmega(w mgl64.Vec3) {
	b.omega = w
	b.Awake()
}

// AddForce accumulates a world space force for the current substep
func (b *Body) AddForce(force mgl64.Vec3) {
	if b.bodyType != BodyTypeDynamic {
		return
	}
	b.mu.Lock()
	b.accumulatedForce = b.accumulatedForce.Add(force)
	b.mu.Unlock()
}

// AddTorque accumulates a world space torque for the current substep
func (b *Body) AddTorque(torque mgl64.Vec3) {
	if b.bodyType != BodyTypeDynamic {
		return
	}
	b.mu.Lock()
	b.accumulatedTorque = b.accumulatedTorque.Add(torque)
	b.mu.Unlock()
}

// Force returns the force accumulated so far in the current substep
func (b *Body) Force() mgl64.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accumulatedForce
}

// LastAppliedForce returns the net force integrated in the last substep
func (b *Body) LastAppliedForce() mgl64.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastForce
}

// LastAppliedTorque returns the net torque integrated in the last substep
func (b *Body) LastAppliedTorque() mgl64.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastTorque
}

// ClearForces drops the accumulators
func (b *Body) ClearForces() {
	b.mu.Lock()
	b.accumulatedForce = mgl64.Vec3{}
	b.accumulatedTorque = mgl64.Vec3{}
	b.mu.Unlock()
}

// ApplyImpulsePair changes the velocities by a linear and an angular impulse
func (b *Body) ApplyImpulsePair(linearImpulse, angularImpulse mgl64.Vec3, timestep float64) {
	if b.bodyType != BodyTypeDynamic {
		return
	}
	b.velocity = b.velocity.Add(linearImpulse.Mul(b.invMass))
	b.omega = b.omega.Add(b.InverseInertiaWorld().Mul3x1(angularImpulse))
	b.Awake()
}

// AddImpulse changes the velocity of a world point by deltaVelocity
func (b *Body) AddImpulse(deltaVelocity, point mgl64.Vec3, timestep float64) {
	if b.bodyType != BodyTypeDynamic {
		return
	}
	impulse := deltaVelocity.Mul(b.mass)
	r := point.Sub(b.WorldCenterOfMass())
	b.ApplyImpulsePair(impulse, r.Cross(impulse), timestep)
}

// InertiaWorld returns I_world = R * I_local * R^T
func (b *Body) InertiaWorld() mgl64.Mat3 {
	R := b.transform.Rotation.Mat4().Mat3()
	return R.Mul3(b.inertiaLocal).Mul3(R.Transpose())
}

// InverseInertiaWorld returns I_world^-1 = R * I_local^-1 * R^T, zero for
// static and kinematic bodies
func (b *Body) InverseInertiaWorld() mgl64.Mat3 {
	if b.bodyType != BodyTypeDynamic {
		return mgl64.Mat3{}
	}
	R := b.transform.Rotation.Mat4().Mat3()
	return R.Mul3(b.inverseInertiaLocal).Mul3(R.Transpose())
}

// InertiaLocal returns the local inertia tensor
func (b *Body) InertiaLocal() mgl64.Mat3 { return b.inertiaLocal }

func (b *Body) SetTransformCallback(cb TransformCallback)           { b.transformCallback = cb }
func (b *Body) SetForceAndTorqueCallback(cb ForceAndTorqueCallback) { b.forceCallback = cb }
func (b *Body) SetDestructorCallback(cb BodyDestructorCallback)     { b.destructor = cb }
func (b *Body) ForceAndTorqueCallback() ForceAndTorqueCallback      { return b.forceCallback }

// ContactJoints returns the contacts found for this body in the last step
func (b *Body) ContactJoints() []*ContactJoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*ContactJoint(nil), b.contacts...)
}

func (b *Body) setContacts(contacts []*ContactJoint) {
	b.mu.Lock()
	b.contacts = contacts
	b.mu.Unlock()
}

func (b *Body) Sleep() {
	b.isSleeping = true
	b.sleepTimer = 0.0
	b.ClearForces()
	b.velocity = mgl64.Vec3{}
	b.omega = mgl64.Vec3{}
}

func (b *Body) Awake() {
	b.isSleeping = false
	b.sleepTimer = 0.0
}

func (b *Body) trySleep(dt float64) {
	if !b.autoSleep || b.bodyType != BodyTypeDynamic {
		return
	}
	if b.velocity.Len() < sleepVelocityThreshold && b.omega.Len() < sleepVelocityThreshold {
		b.sleepTimer += dt
		if b.sleepTimer >= sleepTimeThreshold {
			b.Sleep()
		}
	} else {
		b.sleepTimer = 0
	}
}

// integrateVelocity applies the accumulated force and torque
func (b *Body) integrateVelocity(dt float64) {
	if b.bodyType != BodyTypeDynamic || b.isSleeping {
		return
	}

	b.mu.Lock()
	force, torque := b.accumulatedForce, b.accumulatedTorque
	b.lastForce, b.lastTorque = force, torque
	b.accumulatedForce = mgl64.Vec3{}
	b.accumulatedTorque = mgl64.Vec3{}
	b.mu.Unlock()

	b.velocity = b.velocity.Add(force.Mul(b.invMass * dt))
	b.velocity = b.velocity.Mul(math.Exp(-b.Material.LinearDamping * dt))

	angularAccel := b.InverseInertiaWorld().Mul3x1(torque)
	b.omega = b.omega.Add(angularAccel.Mul(dt))
	b.omega = b.omega.Mul(math.Exp(-b.Material.AngularDamping * dt))
}

// integratePosition moves the body by its velocity and keeps the pre-move
// transform for the velocity update after the position solve
func (b *Body) integratePosition(dt float64) {
	if b.bodyType == BodyTypeStatic || b.isSleeping {
		return
	}

	b.previous = b.transform
	b.transform.Position = b.transform.Position.Add(b.velocity.Mul(dt))

	omegaQuat := mgl64.Quat{V: b.omega, W: 0}
	qDot := omegaQuat.Mul(b.transform.Rotation).Scale(0.5)
	b.transform.Rotation = b.transform.Rotation.Add(qDot.Scale(dt)).Normalize()

	b.presolveVelocity = b.velocity
	b.presolveOmega = b.omega
	b.updateAABB()
}

// updateVelocity derives the velocity from the position change produced by
// integration and the contact position solve
func (b *Body) updateVelocity(dt float64) {
	if b.bodyType != BodyTypeDynamic || b.isSleeping {
		return
	}

	b.velocity = b.transform.Position.Sub(b.previous.Position).Mul(1.0 / dt)
	qDelta := b.transform.Rotation.Mul(b.previous.Rotation.Conjugate()).Normalize()
	if qDelta.W >= 0.0 {
		b.omega = qDelta.V.Mul(2.0 / dt)
	} else {
		b.omega = qDelta.V.Mul(-2.0 / dt)
	}
}

func (b *Body) isStaticForSolver() bool {
	return b == nil || b.bodyType != BodyTypeDynamic || b.invMass == 0
}
