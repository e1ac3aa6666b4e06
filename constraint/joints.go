package constraint

import (
	"sync"

	"github.com/akmonengine/ogrenewt"
	"github.com/akmonengine/ogrenewt/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Limits bounds a joint coordinate when Enabled
type Limits struct {
	Enabled bool
	Min     float64
	Max     float64
}

func initialFrames(pin, dir mgl64.Vec3, child, parent ogrenewt.PhysicsBody) (local0, local1 actor.Transform) {
	return PinAndDirToLocal(pin, dir, bodyPose(child), bodyPose(parent))
}

// BallAndSocket keeps a point of the child on a point of the parent and
// leaves every rotation free
type BallAndSocket struct {
	*Joint
}

// NewBallAndSocket pins child to parent, or to the world, at the world
// point pivot
func NewBallAndSocket(child, parent ogrenewt.PhysicsBody, pivot mgl64.Vec3) *BallAndSocket {
	local0, local1 := initialFrames(pivot, mgl64.Vec3{1, 0, 0}, child, parent)
	b := &BallAndSocket{}
	b.Joint = newJoint(child, parent, local0, local1, func(j *Joint, _ float64) {
		g0, g1 := j.LocalToGlobal()
		front, up, right := Axes(g0)
		j.AddLinearRow(g0.Position, g1.Position, front)
		j.AddLinearRow(g0.Position, g1.Position, up)
		j.AddLinearRow(g0.Position, g1.Position, right)
	})
	return b
}

// Hinge lets the child turn about a single pin axis
type Hinge struct {
	*Joint

	limitMu sync.Mutex
	limits  Limits
}

// NewHinge hinges child on parent, or on the world, about the world axis dir
// through pin
func NewHinge(child, parent ogrenewt.PhysicsBody, pin, dir mgl64.Vec3) *Hinge {
	local0, local1 := initialFrames(pin, dir, child, parent)
	h := &Hinge{}
	submit := func(j *Joint, _ float64) {
		g0, g1 := j.LocalToGlobal()
		front0, up0, right0 := Axes(g0)
		front1, up1, _ := Axes(g1)

		j.AddLinearRow(g0.Position, g1.Position, front0)
		j.AddLinearRow(g0.Position, g1.Position, up0)
		j.AddLinearRow(g0.Position, g1.Position, right0)
		j.AddAngularRow(angleAbout(front1, front0, up0), up0)
		j.AddAngularRow(angleAbout(front1, front0, right0), right0)

		limits := h.Limits()
		if !limits.Enabled {
			return
		}
		angle := angleAbout(up1, up0, front0)
		switch {
		case angle < limits.Min:
			j.AddAngularRow(angle-limits.Min, front0)
			j.SetRowMinimumFriction(0)
		case angle > limits.Max:
			j.AddAngularRow(angle-limits.Max, front0)
			j.SetRowMaximumFriction(0)
		}
	}
	h.Joint = newJoint(child, parent, local0, local1, submit)
	return h
}

// SetLimits bounds the hinge angle, in radians, to [lower, upper]
func (h *Hinge) SetLimits(lower, upper float64) {
	h.limitMu.Lock()
	h.limits = Limits{Enabled: true, Min: lower, Max: upper}
	h.limitMu.Unlock()
}

func (h *Hinge) DisableLimits() {
	h.limitMu.Lock()
	h.limits.Enabled = false
	h.limitMu.Unlock()
}

func (h *Hinge) Limits() Limits {
	h.limitMu.Lock()
	defer h.limitMu.Unlock()
	return h.limits
}

// Angle returns the rotation of the child about the pin, relative to the
// parent, from the last promoted poses
func (h *Hinge) Angle() float64 {
	g0, g1 := h.GlobalFrames()
	front0, up0, _ := Axes(g0)
	_, up1, _ := Axes(g1)
	return angleAbout(up1, up0, front0)
}

// Slider lets the child translate along a single pin axis
type Slider struct {
	*Joint

	settingsMu sync.Mutex
	limits     Limits
	spring     SpringDamper
	rest       float64
	sprung     bool
}

// NewSlider slides child on parent, or on the world, along the world axis
// dir through pin
func NewSlider(child, parent ogrenewt.PhysicsBody, pin, dir mgl64.Vec3) *Slider {
	local0, local1 := initialFrames(pin, dir, child, parent)
	s := &Slider{}
	submit := func(j *Joint, _ float64) {
		g0, g1 := j.LocalToGlobal()
		front0, up0, right0 := Axes(g0)
		front1, up1, _ := Axes(g1)

		j.AddLinearRow(g0.Position, g1.Position, up0)
		j.AddLinearRow(g0.Position, g1.Position, right0)
		j.AddAngularRow(angleAbout(up1, up0, front0), front0)
		j.AddAngularRow(angleAbout(front1, front0, up0), up0)
		j.AddAngularRow(angleAbout(front1, front0, right0), right0)

		s.settingsMu.Lock()
		limits, spring, rest, sprung := s.limits, s.spring, s.rest, s.sprung
		s.settingsMu.Unlock()

		position := g0.Position.Sub(g1.Position).Dot(front0)
		if sprung {
			j.AddLinearRow(g0.Position, g1.Position.Add(front0.Mul(rest)), front0)
			j.SetRowSpringDamper(spring.K, spring.D)
		}
		if !limits.Enabled {
			return
		}
		switch {
		case position < limits.Min:
			j.AddLinearRow(g0.Position, g1.Position.Add(front0.Mul(limits.Min)), front0)
			j.SetRowMinimumFriction(0)
		case position > limits.Max:
			j.AddLinearRow(g0.Position, g1.Position.Add(front0.Mul(limits.Max)), front0)
			j.SetRowMaximumFriction(0)
		}
	}
	s.Joint = newJoint(child, parent, local0, local1, submit)
	return s
}

// SetLimits bounds the slider position to [lower, upper]
func (s *Slider) SetLimits(lower, upper float64) {
	s.settingsMu.Lock()
	s.limits = Limits{Enabled: true, Min: lower, Max: upper}
	s.settingsMu.Unlock()
}

// SetSpring pulls the slider toward rest with a spring of stiffness k and
// damping d
func (s *Slider) SetSpring(rest, k, d float64) {
	s.settingsMu.Lock()
	s.rest = rest
	s.spring = SpringDamper{K: k, D: d}
	s.sprung = true
	s.settingsMu.Unlock()
}

// Position returns the offset of the child along the pin, from the last
// promoted poses
func (s *Slider) Position() float64 {
	g0, g1 := s.GlobalFrames()
	front0, _, _ := Axes(g0)
	return g0.Position.Sub(g1.Position).Dot(front0)
}
