package newton

import (
	"math"
	"sync/atomic"
	"testing"

	"github.com/akmonengine/ogrenewt/actor"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(x, y, z float64) actor.Transform {
	t := actor.NewTransform()
	t.Position = mgl64.Vec3{x, y, z}
	return t
}

func newSphereBody(w *World, radius float64, transform actor.Transform, bodyType BodyType) *Body {
	collision := actor.NewCollision(&actor.Sphere{Radius: radius})
	defer collision.Release()
	return w.CreateBody(collision, transform, bodyType)
}

func gravity(g mgl64.Vec3) ForceAndTorqueCallback {
	return func(body *Body, timestep float64, threadIndex int) {
		body.AddForce(g.Mul(body.Mass()))
	}
}

func TestParseGeneration(t *testing.T) {
	tests := []struct {
		in      string
		want    Generation
		wantErr bool
	}{
		{"ndk3", GenerationNDK3, false},
		{"NDK4", GenerationNDK4, false},
		{"", GenerationNDK4, false},
		{"ndk5", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseGeneration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStepAppliesCallbackForce(t *testing.T) {
	w := NewWorld(Options{})
	body := newSphereBody(w, 0.5, at(0, 10, 0), BodyTypeDynamic)
	body.SetMassMatrix(10, 1, 1, 1)
	body.SetForceAndTorqueCallback(gravity(mgl64.Vec3{0, -12.9, 0}))

	w.Step(1.0 / 60.0)

	assert.InDelta(t, -129.0, body.LastAppliedForce().Y(), 1e-9)
	assert.InDelta(t, -12.9/60.0, body.Velocity().Y(), 1e-9)
	assert.Less(t, body.Matrix().Position.Y(), 10.0)
}

func TestStepWithoutForceCallbackKeepsBodyStill(t *testing.T) {
	w := NewWorld(Options{})
	body := newSphereBody(w, 0.5, at(0, 10, 0), BodyTypeDynamic)
	body.SetMassMatrix(1, 1, 1, 1)

	w.Step(1.0 / 60.0)

	assert.Equal(t, mgl64.Vec3{0, 10, 0}, body.Matrix().Position)
}

func TestTransformCallbackOncePerStep(t *testing.T) {
	w := NewWorld(Options{Substeps: 4, Workers: 2})
	moving := newSphereBody(w, 0.5, at(0, 10, 0), BodyTypeDynamic)
	moving.SetMassMatrix(1, 1, 1, 1)
	moving.SetForceAndTorqueCallback(gravity(mgl64.Vec3{0, -9.81, 0}))
	static := newSphereBody(w, 0.5, at(5, 0, 0), BodyTypeStatic)

	var movingCalls, staticCalls atomic.Int32
	moving.SetTransformCallback(func(body *Body, transform actor.Transform, threadIndex int) {
		movingCalls.Add(1)
		assert.Equal(t, body.Matrix(), transform)
	})
	static.SetTransformCallback(func(*Body, actor.Transform, int) { staticCalls.Add(1) })

	w.Step(1.0 / 60.0)
	w.Step(1.0 / 60.0)

	assert.Equal(t, int32(2), movingCalls.Load())
	assert.Equal(t, int32(0), staticCalls.Load())
	assert.Equal(t, uint64(2), w.StepCount())
}

func TestSphereRestsOnPlane(t *testing.T) {
	w := NewWorld(Options{Substeps: 4})
	plane := actor.NewCollision(&actor.Plane{Normal: mgl64.Vec3{0, 1, 0}})
	w.CreateBody(plane, actor.NewTransform(), BodyTypeStatic)
	plane.Release()

	ball := newSphereBody(w, 0.5, at(0, 2, 0), BodyTypeDynamic)
	ball.SetMassMatrix(1, 0.1, 0.1, 0.1)
	ball.SetForceAndTorqueCallback(gravity(mgl64.Vec3{0, -9.81, 0}))

	for range 240 {
		w.Step(1.0 / 60.0)
	}

	assert.InDelta(t, 0.5, ball.Matrix().Position.Y(), 0.05)
	contacts := ball.ContactJoints()
	if !ball.IsSleeping() {
		require.NotEmpty(t, contacts)
		assert.InDelta(t, 1.0, contacts[0].NormalFrom(contacts[0].Other(ball)).Y(), 1e-9)
	}
}

func TestDestroyBody(t *testing.T) {
	w := NewWorld(Options{})
	collision := actor.NewCollision(&actor.Box{HalfExtents: mgl64.Vec3{1, 1, 1}})
	body := w.CreateBody(collision, actor.NewTransform(), BodyTypeDynamic)
	other := newSphereBody(w, 1, at(3, 0, 0), BodyTypeDynamic)
	joint := w.CreateJoint(body, other)

	var order []string
	joint.SetDestructorCallback(func(*Joint) { order = append(order, "joint") })
	body.SetDestructorCallback(func(*Body) { order = append(order, "body") })

	assert.Equal(t, 2, collision.RefCount())
	w.DestroyBody(body)
	w.DestroyBody(body)

	assert.Equal(t, []string{"joint", "body"}, order)
	assert.True(t, body.IsDestroyed())
	assert.True(t, joint.IsDestroyed())
	assert.Equal(t, 1, collision.RefCount())
	assert.Equal(t, 1, w.BodyCount())
	assert.Equal(t, 0, w.JointCount())
	collision.Release()
}

func TestSetCollisionSwapsReferences(t *testing.T) {
	w := NewWorld(Options{})
	first := actor.NewCollision(&actor.Sphere{Radius: 1})
	second := actor.NewCollision(&actor.Sphere{Radius: 2})
	body := w.CreateBody(first, actor.NewTransform(), BodyTypeDynamic)

	body.SetCollision(second)

	assert.Equal(t, 1, first.RefCount())
	assert.Equal(t, 2, second.RefCount())
	assert.InDelta(t, 2.0, body.AABB().Max.X(), 1e-9)
}

func TestAddImpulse(t *testing.T) {
	w := NewWorld(Options{})
	body := newSphereBody(w, 1, actor.NewTransform(), BodyTypeDynamic)
	body.SetMassMatrix(2, 1, 1, 1)

	body.AddImpulse(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}, 1.0/60.0)

	assert.InDelta(t, 1.0, body.Velocity().X(), 1e-9)
	// r x J = (0,1,0) x (2,0,0) = (0,0,-2)
	assert.InDelta(t, -2.0, body.Omega().Z(), 1e-9)
}

func TestKinematicBodyIgnoresForces(t *testing.T) {
	w := NewWorld(Options{})
	body := newSphereBody(w, 1, actor.NewTransform(), BodyTypeKinematic)
	body.SetMassMatrix(1, 1, 1, 1)
	body.AddForce(mgl64.Vec3{100, 0, 0})
	body.SetVelocity(mgl64.Vec3{0, 0, 1})

	w.Step(1.0)

	assert.InDelta(t, 1.0, body.Matrix().Position.Z(), 1e-9)
	assert.InDelta(t, 0.0, body.Matrix().Position.X(), 1e-9)
}

func TestTriggerPhases(t *testing.T) {
	w := NewWorld(Options{})
	zone := actor.NewCollision(&actor.Box{HalfExtents: mgl64.Vec3{1, 1, 1}})
	trigger := w.CreateBody(zone, actor.NewTransform(), BodyTypeStatic)
	zone.Release()
	trigger.SetTrigger(true)

	visitor := newSphereBody(w, 0.25, at(0, 0, 0), BodyTypeKinematic)

	var phases []TriggerPhase
	w.SetTriggerListener(func(tr, other *Body, phase TriggerPhase) {
		assert.Same(t, trigger, tr)
		assert.Same(t, visitor, other)
		phases = append(phases, phase)
	})

	w.Step(1.0 / 60.0)
	w.Step(1.0 / 60.0)
	w.Step(1.0 / 60.0)
	visitor.SetMatrix(at(10, 0, 0))
	w.Step(1.0 / 60.0)
	w.Step(1.0 / 60.0)

	assert.Equal(t, []TriggerPhase{TriggerEnter, TriggerInside, TriggerInside, TriggerExit}, phases)
	assert.Equal(t, mgl64.Vec3{0, 0, 0}, visitor.Velocity())
}

func TestRayCastClosestHit(t *testing.T) {
	w := NewWorld(Options{})
	near := newSphereBody(w, 1, at(5, 0, 0), BodyTypeStatic)
	far := newSphereBody(w, 1, at(10, 0, 0), BodyTypeStatic)

	var hits []*Body
	var params []float64
	w.RayCast(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{20, 0, 0}, func(b *Body, _ *actor.Collision, contact, normal mgl64.Vec3, _ int, param float64) float64 {
		hits = append(hits, b)
		params = append(params, param)
		assert.InDelta(t, -1.0, normal.X(), 1e-9)
		return param
	}, nil)

	require.Len(t, hits, 1)
	assert.Same(t, near, hits[0])
	assert.InDelta(t, 0.2, params[0], 1e-9)

	hits = hits[:0]
	w.RayCast(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{20, 0, 0}, func(b *Body, _ *actor.Collision, _, _ mgl64.Vec3, _ int, _ float64) float64 {
		hits = append(hits, b)
		return 1
	}, func(b *Body, _ *actor.Collision) bool {
		return b != near
	})
	require.Len(t, hits, 1)
	assert.Same(t, far, hits[0])
}

func TestRayCastKeepAllHits(t *testing.T) {
	w := NewWorld(Options{})
	newSphereBody(w, 1, at(10, 0, 0), BodyTypeStatic)
	newSphereBody(w, 1, at(5, 0, 0), BodyTypeStatic)

	var params []float64
	w.RayCast(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{20, 0, 0}, func(_ *Body, _ *actor.Collision, _, _ mgl64.Vec3, _ int, param float64) float64 {
		params = append(params, param)
		return 1
	}, nil)

	require.Len(t, params, 2)
	assert.InDelta(t, 0.2, params[0], 1e-9)
	assert.InDelta(t, 0.45, params[1], 1e-9)
}

func TestPlayerControllerStandsAndJumps(t *testing.T) {
	w := NewWorld(Options{})
	floor := actor.NewCollision(&actor.Box{HalfExtents: mgl64.Vec3{50, 0.5, 50}})
	w.CreateBody(floor, at(0, -0.5, 0), BodyTypeStatic)
	floor.Release()

	player := w.CreatePlayerController(80, 0.4, 1.8, 0.3, at(0, 1.0, 0))
	w.Step(1.0 / 60.0)

	require.True(t, player.IsOnFloor())
	assert.InDelta(t, 0.9, player.Body().Matrix().Position.Y(), 1e-9)

	player.SetHeadingAngle(math.Pi / 2)
	player.SetForwardSpeed(2)
	w.Step(0.5)
	// heading pi/2 turns -Z into -X
	assert.InDelta(t, -1.0, player.Body().Matrix().Position.X(), 1e-6)

	player.SetForwardSpeed(0)
	player.Jump(5)
	w.Step(1.0 / 60.0)
	assert.True(t, player.IsInFreeFall())
	assert.Greater(t, player.Body().Matrix().Position.Y(), 0.9)
}

func TestPlayerControllerCrouchKeepsFeetOnFloor(t *testing.T) {
	w := NewWorld(Options{})
	floor := actor.NewCollision(&actor.Box{HalfExtents: mgl64.Vec3{50, 0.5, 50}})
	w.CreateBody(floor, at(0, -0.5, 0), BodyTypeStatic)
	floor.Release()

	player := w.CreatePlayerController(80, 0.4, 2, 0.25, at(0, 1.0, 0))
	w.Step(1.0 / 60.0)
	require.True(t, player.IsOnFloor())

	player.SetCrouch(true)
	for range 3 {
		w.Step(1.0 / 60.0)
		require.True(t, player.IsOnFloor())
		require.False(t, player.IsInFreeFall())
		assert.InDelta(t, 0.5, player.Body().Matrix().Position.Y(), 1e-9)
	}

	player.SetCrouch(false)
	w.Step(1.0 / 60.0)
	assert.True(t, player.IsOnFloor())
	assert.InDelta(t, 1.0, player.Body().Matrix().Position.Y(), 1e-9)
}

func TestBroadPhaseSkipsStaticPairs(t *testing.T) {
	w := NewWorld(Options{})
	newSphereBody(w, 1, at(0, 0, 0), BodyTypeStatic)
	newSphereBody(w, 1, at(0.5, 0, 0), BodyTypeStatic)
	dynamic := newSphereBody(w, 1, at(1, 0, 0), BodyTypeDynamic)

	w.grid.Clear()
	for i, b := range w.bodies {
		w.grid.Insert(i, b.aabb)
	}
	pairs := w.grid.FindPairs(w.bodies)

	require.Len(t, pairs, 2)
	for _, p := range pairs {
		assert.Same(t, dynamic, p.BodyB)
	}
}
