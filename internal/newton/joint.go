package newton

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultRowStiffness is the fraction of the position error a row corrects
// per substep when no stiffness is given
const DefaultRowStiffness = 0.9

// Jacobian is one side of a constraint row
type Jacobian struct {
	Linear  mgl64.Vec3
	Angular mgl64.Vec3
}

// JacobianPair holds both sides of a constraint row
type JacobianPair struct {
	J0 Jacobian
	J1 Jacobian
}

// SubmitConstraintsCallback is the NDK3 joint callback. The joint adds its
// rows through the stateful LegacyRows API.
type SubmitConstraintsCallback func(joint *Joint, timestep float64, rows *LegacyRows)

// JacobianDerivativeCallback is the NDK4 joint callback. The joint fills the
// Jacobian descriptor directly.
type JacobianDerivativeCallback func(joint *Joint, desc *Descriptor)

// JointDestructorCallback is invoked exactly once when the joint is destroyed
type JointDestructorCallback func(joint *Joint)

type rowEntry struct {
	jacobian      JacobianPair
	positionError float64
	stiffness     float64
	accel         float64
	hasAccel      bool
	springK       float64
	springD       float64
	hasSpring     bool
	minFriction   float64
	maxFriction   float64
}

func newRowEntry(jacobian JacobianPair, positionError float64) rowEntry {
	return rowEntry{
		jacobian:      jacobian,
		positionError: positionError,
		stiffness:     DefaultRowStiffness,
		minFriction:   math.Inf(-1),
		maxFriction:   math.Inf(1),
	}
}

// Joint is a native bilateral constraint between Body0 and Body1. Body1 may
// be nil, in which case the joint attaches Body0 to the world.
type Joint struct {
	world    *World
	UserData atomic.Uint64

	body0 *Body
	body1 *Body

	collisionState bool
	destroyed      bool

	submit     SubmitConstraintsCallback
	derivative JacobianDerivativeCallback
	destructor JointDestructorCallback

	rows []rowEntry

	mu     sync.Mutex
	forces []float64
}

func (j *Joint) World() *World { return j.world }
func (j *Joint) Body0() *Body  { return j.body0 }
func (j *Joint) Body1() *Body  { return j.body1 }

// CollisionState reports whether the two bodies still collide with each other
func (j *Joint) CollisionState() bool { return j.collisionState }

func (j *Joint) SetCollisionState(state bool) { j.collisionState = state }

func (j *Joint) IsDestroyed() bool { return j.destroyed }

func (j *Joint) SetSubmitConstraintsCallback(cb SubmitConstraintsCallback) { j.submit = cb }

func (j *Joint) SetJacobianDerivativeCallback(cb JacobianDerivativeCallback) { j.derivative = cb }

func (j *Joint) SetDestructorCallback(cb JointDestructorCallback) { j.destructor = cb }

// RowCount returns the number of rows solved in the last step
func (j *Joint) RowCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.forces)
}

// RowForce returns the force applied by row i in the last step, 0 when i is
// out of range
func (j *Joint) RowForce(i int) float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	if i < 0 || i >= len(j.forces) {
		return 0
	}
	return j.forces[i]
}

// LinearRowJacobian builds the row keeping p0 (on body0) and p1 (on body1)
// together along dir. The position error is (p0 - p1) · dir.
func (j *Joint) LinearRowJacobian(p0, p1, dir mgl64.Vec3) (JacobianPair, float64) {
	dir = dir.Normalize()
	r0 := p0.Sub(j.body0.WorldCenterOfMass())
	r1 := mgl64.Vec3{}
	if j.body1 != nil {
		r1 = p1.Sub(j.body1.WorldCenterOfMass())
	}
	return JacobianPair{
		J0: Jacobian{Linear: dir, Angular: r0.Cross(dir)},
		J1: Jacobian{Linear: dir.Mul(-1), Angular: r1.Cross(dir).Mul(-1)},
	}, p0.Sub(p1).Dot(dir)
}

// AngularRowJacobian builds the row driving the relative rotation about dir
// to zero
func (j *Joint) AngularRowJacobian(relativeAngle float64, dir mgl64.Vec3) (JacobianPair, float64) {
	dir = dir.Normalize()
	return JacobianPair{
		J0: Jacobian{Angular: dir},
		J1: Jacobian{Angular: dir.Mul(-1)},
	}, relativeAngle
}

// RowVelocity returns the current relative velocity along the row
func (j *Joint) RowVelocity(jacobian JacobianPair) float64 {
	v := jacobian.J0.Linear.Dot(j.body0.velocity) + jacobian.J0.Angular.Dot(j.body0.omega)
	if j.body1 != nil {
		v += jacobian.J1.Linear.Dot(j.body1.velocity) + jacobian.J1.Angular.Dot(j.body1.omega)
	}
	return v
}

// CalculateSpringDamperAcceleration returns the row acceleration of a spring
// of stiffness ks and damping kd, for a position error x and a relative
// velocity v, integrated implicitly over dt
func CalculateSpringDamperAcceleration(dt, ks, x, kd, v float64) float64 {
	ksd := dt * ks
	num := ks*x + kd*v + ksd*v
	den := 1 + dt*kd + dt*ksd
	return -num / den
}

// LegacyRows is the NDK3 row API. Rows are added one at a time and every
// SetRow call modifies the row added last; without any row they do nothing.
type LegacyRows struct {
	joint    *Joint
	timestep float64
	rows     []rowEntry
}

func (r *LegacyRows) Timestep() float64 { return r.timestep }

func (r *LegacyRows) RowCount() int { return len(r.rows) }

func (r *LegacyRows) AddLinearRow(p0, p1, dir mgl64.Vec3) {
	jacobian, err := r.joint.LinearRowJacobian(p0, p1, dir)
	r.rows = append(r.rows, newRowEntry(jacobian, err))
}

func (r *LegacyRows) AddAngularRow(relativeAngle float64, dir mgl64.Vec3) {
	jacobian, err := r.joint.AngularRowJacobian(relativeAngle, dir)
	r.rows = append(r.rows, newRowEntry(jacobian, err))
}

func (r *LegacyRows) AddGeneralRow(j0, j1 Jacobian) {
	r.rows = append(r.rows, newRowEntry(JacobianPair{J0: j0, J1: j1}, 0))
}

func (r *LegacyRows) last() *rowEntry {
	if len(r.rows) == 0 {
		return nil
	}
	return &r.rows[len(r.rows)-1]
}

func (r *LegacyRows) SetRowStiffness(stiffness float64) {
	if row := r.last(); row != nil {
		row.stiffness = mgl64.Clamp(stiffness, 0, 1)
	}
}

func (r *LegacyRows) SetRowAcceleration(accel float64) {
	if row := r.last(); row != nil {
		row.accel = accel
		row.hasAccel = true
	}
}

func (r *LegacyRows) SetRowSpringDamperAcceleration(k, d float64) {
	if row := r.last(); row != nil {
		row.springK = k
		row.springD = d
		row.hasSpring = true
	}
}

func (r *LegacyRows) SetRowMinimumFriction(friction float64) {
	if row := r.last(); row != nil {
		row.minFriction = friction
	}
}

func (r *LegacyRows) SetRowMaximumFriction(friction float64) {
	if row := r.last(); row != nil {
		row.maxFriction = friction
	}
}

// DescriptorRow is one fully described NDK4 row
type DescriptorRow struct {
	Jacobian      JacobianPair
	PositionError float64
	// Stiffness in [0,1]; 0 means DefaultRowStiffness
	Stiffness     float64
	JointAccel    float64
	HasJointAccel bool
	LowerFriction float64
	UpperFriction float64
}

// Descriptor is the NDK4 row container filled by the joint callback
type Descriptor struct {
	Timestep float64
	Rows     []DescriptorRow
}

// NewDescriptorRow returns a row without acceleration or friction bounds
func NewDescriptorRow(jacobian JacobianPair, positionError float64) DescriptorRow {
	return DescriptorRow{
		Jacobian:      jacobian,
		PositionError: positionError,
		LowerFriction: math.Inf(-1),
		UpperFriction: math.Inf(1),
	}
}

func (d DescriptorRow) entry() rowEntry {
	e := newRowEntry(d.Jacobian, d.PositionError)
	if d.Stiffness > 0 {
		e.stiffness = mgl64.Clamp(d.Stiffness, 0, 1)
	}
	e.accel = d.JointAccel
	e.hasAccel = d.HasJointAccel
	e.minFriction = d.LowerFriction
	e.maxFriction = d.UpperFriction
	return e
}

// gatherRows runs the joint callback matching the world generation
func (j *Joint) gatherRows(generation Generation, timestep float64) {
	j.rows = j.rows[:0]
	switch generation {
	case GenerationNDK3:
		if j.submit == nil {
			return
		}
		rows := LegacyRows{joint: j, timestep: timestep, rows: j.rows}
		j.submit(j, timestep, &rows)
		j.rows = rows.rows
	case GenerationNDK4:
		if j.derivative == nil {
			return
		}
		desc := Descriptor{Timestep: timestep}
		j.derivative(j, &desc)
		for _, row := range desc.Rows {
			j.rows = append(j.rows, row.entry())
		}
	}
}

type rowState struct {
	joint   *Joint
	row     *rowEntry
	target  float64
	invK    float64
	impulse float64
}

func effectiveMass(b *Body, jac Jacobian) float64 {
	if b.isStaticForSolver() {
		return 0
	}
	return jac.Linear.Dot(jac.Linear)*b.invMass + b.InverseInertiaWorld().Mul3x1(jac.Angular).Dot(jac.Angular)
}

func applyRowImpulse(b *Body, jac Jacobian, impulse float64) {
	if b.isStaticForSolver() {
		return
	}
	b.velocity = b.velocity.Add(jac.Linear.Mul(impulse * b.invMass))
	b.omega = b.omega.Add(b.InverseInertiaWorld().Mul3x1(jac.Angular.Mul(impulse)))
}

// solveJoints runs projected Gauss-Seidel over all rows of all joints for the
// given number of iterations. Friction bounds are forces; they are scaled by
// the timestep to clamp the accumulated impulse.
func solveJoints(joints []*Joint, timestep float64, iterations int) {
	var states []rowState
	for _, j := range joints {
		for i := range j.rows {
			row := &j.rows[i]
			k := effectiveMass(j.body0, row.jacobian.J0)
			if j.body1 != nil {
				k += effectiveMass(j.body1, row.jacobian.J1)
			}
			if k < 1e-12 {
				states = append(states, rowState{joint: j, row: row})
				continue
			}

			relVel := j.RowVelocity(row.jacobian)
			var target float64
			switch {
			case row.hasSpring:
				target = relVel + CalculateSpringDamperAcceleration(timestep, row.springK, row.positionError, row.springD, relVel)*timestep
			case row.hasAccel:
				target = relVel + row.accel*timestep
			default:
				target = -row.positionError * row.stiffness / timestep
			}
			states = append(states, rowState{joint: j, row: row, target: target, invK: 1 / k})
		}
	}

	for range max(1, iterations) {
		for i := range states {
			s := &states[i]
			if s.invK == 0 {
				continue
			}
			j := s.joint
			relVel := j.RowVelocity(s.row.jacobian)
			delta := (s.target - relVel) * s.invK

			accumulated := mgl64.Clamp(s.impulse+delta, s.row.minFriction*timestep, s.row.maxFriction*timestep)
			delta = accumulated - s.impulse
			s.impulse = accumulated

			applyRowImpulse(j.body0, s.row.jacobian.J0, delta)
			if j.body1 != nil {
				applyRowImpulse(j.body1, s.row.jacobian.J1, delta)
			}
		}
	}

	byJoint := make(map[*Joint][]float64, len(joints))
	for _, s := range states {
		byJoint[s.joint] = append(byJoint[s.joint], s.impulse/timestep)
	}
	for _, j := range joints {
		forces := byJoint[j]
		j.mu.Lock()
		j.forces = forces
		j.mu.Unlock()
	}
}
