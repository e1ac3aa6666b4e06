package newton

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegacyRowsSettersTargetLastRow(t *testing.T) {
	w := NewWorld(Options{Generation: GenerationNDK3})
	body := newSphereBody(w, 1, at(0, 0, 0), BodyTypeDynamic)
	j := w.CreateJoint(body, nil)
	rows := &LegacyRows{joint: j, timestep: 1.0 / 60.0}

	// no row yet: setters do nothing
	rows.SetRowStiffness(0.1)
	rows.SetRowAcceleration(3)
	assert.Equal(t, 0, rows.RowCount())

	rows.AddLinearRow(mgl64.Vec3{}, mgl64.Vec3{}, mgl64.Vec3{1, 0, 0})
	rows.AddAngularRow(0.5, mgl64.Vec3{0, 1, 0})
	rows.SetRowStiffness(0.25)
	rows.SetRowAcceleration(7)
	rows.SetRowMinimumFriction(-10)
	rows.SetRowMaximumFriction(10)

	require.Equal(t, 2, rows.RowCount())
	first, last := rows.rows[0], rows.rows[1]
	assert.Equal(t, DefaultRowStiffness, first.stiffness)
	assert.False(t, first.hasAccel)
	assert.True(t, math.IsInf(first.maxFriction, 1))

	assert.Equal(t, 0.25, last.stiffness)
	assert.True(t, last.hasAccel)
	assert.Equal(t, 7.0, last.accel)
	assert.Equal(t, -10.0, last.minFriction)
	assert.Equal(t, 10.0, last.maxFriction)
	assert.Equal(t, 0.5, last.positionError)
}

func TestLinearRowJacobian(t *testing.T) {
	w := NewWorld(Options{})
	a := newSphereBody(w, 1, at(0, 0, 0), BodyTypeDynamic)
	b := newSphereBody(w, 1, at(2, 0, 0), BodyTypeDynamic)
	j := w.CreateJoint(a, b)

	jac, err := j.LinearRowJacobian(mgl64.Vec3{1, 1, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 2, 0})

	assert.Equal(t, mgl64.Vec3{0, 1, 0}, jac.J0.Linear)
	assert.Equal(t, mgl64.Vec3{0, -1, 0}, jac.J1.Linear)
	// r0 = (1,1,0), r0 x dir = (0,0,1)
	assert.Equal(t, mgl64.Vec3{0, 0, 1}, jac.J0.Angular)
	assert.InDelta(t, 1.0, err, 1e-12)
}

func TestCalculateSpringDamperAcceleration(t *testing.T) {
	assert.Equal(t, 0.0, CalculateSpringDamperAcceleration(1.0/60.0, 100, 0, 10, 0))
	// a stretched spring pulls back
	assert.Less(t, CalculateSpringDamperAcceleration(1.0/60.0, 100, 1, 0, 0), 0.0)
	// damping opposes the velocity
	assert.Less(t, CalculateSpringDamperAcceleration(1.0/60.0, 0, 0, 10, 1), 0.0)
}

// pinToWorld holds the body center at anchor
func pinRowsNDK3(anchor mgl64.Vec3) SubmitConstraintsCallback {
	return func(j *Joint, timestep float64, rows *LegacyRows) {
		p0 := j.Body0().Matrix().Position
		for _, dir := range []mgl64.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}} {
			rows.AddLinearRow(p0, anchor, dir)
		}
	}
}

func pinRowsNDK4(anchor mgl64.Vec3) JacobianDerivativeCallback {
	return func(j *Joint, desc *Descriptor) {
		p0 := j.Body0().Matrix().Position
		for _, dir := range []mgl64.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}} {
			jac, err := j.LinearRowJacobian(p0, anchor, dir)
			desc.Rows = append(desc.Rows, NewDescriptorRow(jac, err))
		}
	}
}

func TestJointHoldsBodyInBothGenerations(t *testing.T) {
	for _, generation := range []Generation{GenerationNDK3, GenerationNDK4} {
		t.Run(generation.String(), func(t *testing.T) {
			w := NewWorld(Options{Generation: generation, SolverIterations: 8})
			body := newSphereBody(w, 0.5, at(0, 5, 0), BodyTypeDynamic)
			body.SetMassMatrix(1, 0.1, 0.1, 0.1)
			body.SetAutoSleep(false)
			body.SetForceAndTorqueCallback(gravity(mgl64.Vec3{0, -9.81, 0}))

			j := w.CreateJoint(body, nil)
			anchor := mgl64.Vec3{0, 5, 0}
			j.SetSubmitConstraintsCallback(pinRowsNDK3(anchor))
			j.SetJacobianDerivativeCallback(pinRowsNDK4(anchor))

			for range 60 {
				w.Step(1.0 / 60.0)
			}

			assert.InDelta(t, 5.0, body.Matrix().Position.Y(), 1e-3)
			require.Equal(t, 3, j.RowCount())
			// the vertical row carries the weight
			assert.InDelta(t, 9.81, math.Abs(j.RowForce(1)), 0.5)
			assert.Equal(t, 0.0, j.RowForce(3))
			assert.Equal(t, 0.0, j.RowForce(-1))
		})
	}
}

func TestJointFrictionClampsRowForce(t *testing.T) {
	w := NewWorld(Options{Generation: GenerationNDK3})
	body := newSphereBody(w, 0.5, at(0, 5, 0), BodyTypeDynamic)
	body.SetMassMatrix(1, 0.1, 0.1, 0.1)
	body.SetForceAndTorqueCallback(gravity(mgl64.Vec3{0, -9.81, 0}))

	j := w.CreateJoint(body, nil)
	j.SetSubmitConstraintsCallback(func(j *Joint, timestep float64, rows *LegacyRows) {
		rows.AddLinearRow(j.Body0().Matrix().Position, mgl64.Vec3{0, 5, 0}, mgl64.Vec3{0, 1, 0})
		rows.SetRowMinimumFriction(-2)
		rows.SetRowMaximumFriction(2)
	})

	w.Step(1.0 / 60.0)

	assert.InDelta(t, 2.0, math.Abs(j.RowForce(0)), 1e-9)
	assert.Less(t, body.Velocity().Y(), 0.0)
}

func TestJointWithoutCallbackHasNoRows(t *testing.T) {
	w := NewWorld(Options{Generation: GenerationNDK4})
	body := newSphereBody(w, 0.5, at(0, 0, 0), BodyTypeDynamic)
	j := w.CreateJoint(body, nil)
	j.SetSubmitConstraintsCallback(pinRowsNDK3(mgl64.Vec3{}))

	w.Step(1.0 / 60.0)

	assert.Equal(t, 0, j.RowCount())
}
