package constraint

import (
	"math"

	"github.com/akmonengine/ogrenewt/internal/newton"
)

// attach installs the row callback matching the generation of the native
// world. This file is the only place that knows the native row APIs.
func (j *Joint) attach(nj *newton.Joint) {
	switch nj.World().Generation() {
	case newton.GenerationNDK3:
		nj.SetSubmitConstraintsCallback(func(nj *newton.Joint, timestep float64, rows *newton.LegacyRows) {
			for _, row := range j.gather(nj, timestep) {
				flushLegacy(rows, row)
			}
		})
	default:
		nj.SetJacobianDerivativeCallback(func(nj *newton.Joint, desc *newton.Descriptor) {
			for _, row := range j.gather(nj, desc.Timestep) {
				desc.Rows = append(desc.Rows, describe(nj, desc.Timestep, row))
			}
		})
	}
}

// gather runs the submit function and hands back the queued rows, leaving
// the queue empty for the next substep
func (j *Joint) gather(nj *newton.Joint, timestep float64) []Row {
	j.pending = j.pending[:0]
	j.active = nj
	j.submitting = true
	if j.submit != nil {
		j.submit(j, timestep)
	}
	j.submitting = false
	j.active = nil

	rows := append([]Row(nil), j.pending...)
	j.pending = j.pending[:0]

	j.mu.Lock()
	j.submitted = rows
	j.mu.Unlock()
	return rows
}

func flushLegacy(rows *newton.LegacyRows, row Row) {
	switch row.Kind {
	case RowLinear:
		rows.AddLinearRow(row.Point0, row.Point1, row.Direction)
	case RowAngular:
		rows.AddAngularRow(row.Angle, row.Direction)
	case RowGeneral:
		rows.AddGeneralRow(
			newton.Jacobian{Linear: row.Linear0, Angular: row.Angular0},
			newton.Jacobian{Linear: row.Linear1, Angular: row.Angular1},
		)
	}

	if row.HasStiffness {
		rows.SetRowStiffness(row.Stiffness)
	}
	if row.HasAcceleration {
		rows.SetRowAcceleration(row.Acceleration)
	}
	if row.HasSpring {
		rows.SetRowSpringDamperAcceleration(row.Spring.K, row.Spring.D)
	}
	if row.HasMinFriction {
		rows.SetRowMinimumFriction(row.MinFriction)
	}
	if row.HasMaxFriction {
		rows.SetRowMaximumFriction(row.MaxFriction)
	}
}

// describe builds the descriptor row of row. The descriptor has no spring
// setter, so springs become an explicit acceleration.
func describe(nj *newton.Joint, timestep float64, row Row) newton.DescriptorRow {
	var (
		jacobian      newton.JacobianPair
		positionError float64
	)
	switch row.Kind {
	case RowLinear:
		jacobian, positionError = nj.LinearRowJacobian(row.Point0, row.Point1, row.Direction)
	case RowAngular:
		jacobian, positionError = nj.AngularRowJacobian(row.Angle, row.Direction)
	case RowGeneral:
		jacobian = newton.JacobianPair{
			J0: newton.Jacobian{Linear: row.Linear0, Angular: row.Angular0},
			J1: newton.Jacobian{Linear: row.Linear1, Angular: row.Angular1},
		}
	}

	d := newton.NewDescriptorRow(jacobian, positionError)
	if row.HasStiffness {
		// zero selects the default stiffness in a descriptor
		d.Stiffness = math.Max(row.Stiffness, math.SmallestNonzeroFloat64)
	}
	switch {
	case row.HasSpring:
		d.JointAccel = newton.CalculateSpringDamperAcceleration(timestep, row.Spring.K, positionError, row.Spring.D, nj.RowVelocity(jacobian))
		d.HasJointAccel = true
	case row.HasAcceleration:
		d.JointAccel = row.Acceleration
		d.HasJointAccel = true
	}
	if row.HasMinFriction {
		d.LowerFriction = row.MinFriction
	}
	if row.HasMaxFriction {
		d.UpperFriction = row.MaxFriction
	}
	return d
}
