package constraint

import "github.com/go-gl/mathgl/mgl64"

// RowKind tells which geometry a Row carries
type RowKind uint8

const (
	// RowLinear keeps Point0 (on the child) and Point1 (on the parent)
	// together along Direction
	RowLinear RowKind = iota
	// RowAngular drives Angle, the relative rotation about Direction, to zero
	RowAngular
	// RowGeneral is a raw Jacobian row
	RowGeneral
)

func (k RowKind) String() string {
	switch k {
	case RowLinear:
		return "linear"
	case RowAngular:
		return "angular"
	case RowGeneral:
		return "general"
	default:
		return "unknown"
	}
}

type SpringDamper struct {
	K float64
	D float64
}

// Row is one constraint row waiting for the solver. Rows are built by the
// Add*Row methods of a Joint and live for a single substep.
type Row struct {
	Kind RowKind

	Point0    mgl64.Vec3
	Point1    mgl64.Vec3
	Direction mgl64.Vec3
	Angle     float64

	Linear0  mgl64.Vec3
	Angular0 mgl64.Vec3
	Linear1  mgl64.Vec3
	Angular1 mgl64.Vec3

	Stiffness       float64
	HasStiffness    bool
	Acceleration    float64
	HasAcceleration bool
	Spring          SpringDamper
	HasSpring       bool

	MinFriction    float64
	HasMinFriction bool
	MaxFriction    float64
	HasMaxFriction bool
}
