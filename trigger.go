package ogrenewt

import (
	"sync"

	"github.com/akmonengine/ogrenewt/actor"
	"github.com/akmonengine/ogrenewt/internal/newton"
)

// TriggerCallback receives the overlap changes of a trigger volume. For one
// continuous overlap OnEnter runs once, OnInside on every following step and
// OnExit once when it ends. Callbacks run at the end of the physics step.
type TriggerCallback interface {
	OnEnter(other PhysicsBody)
	OnInside(other PhysicsBody)
	OnExit(other PhysicsBody)
}

// TriggerFuncs adapts plain functions to TriggerCallback; nil fields are
// skipped
type TriggerFuncs struct {
	Enter  func(other PhysicsBody)
	Inside func(other PhysicsBody)
	Exit   func(other PhysicsBody)
}

func (f TriggerFuncs) OnEnter(other PhysicsBody) {
	if f.Enter != nil {
		f.Enter(other)
	}
}

func (f TriggerFuncs) OnInside(other PhysicsBody) {
	if f.Inside != nil {
		f.Inside(other)
	}
}

func (f TriggerFuncs) OnExit(other PhysicsBody) {
	if f.Exit != nil {
		f.Exit(other)
	}
}

// TriggerBody is a volume without collision response that reports the
// bodies crossing it
type TriggerBody struct {
	*Body

	callbackMu sync.Mutex
	callback   TriggerCallback
}

// CreateTriggerBody creates a trigger volume holding a reference to collision
func (w *World) CreateTriggerBody(name string, collision *actor.Collision, pose actor.Transform, callback TriggerCallback) *TriggerBody {
	t := &TriggerBody{Body: w.newBody(KindTrigger, name, collision, pose), callback: callback}
	w.install(t, func() *newton.Body {
		return newTriggerNative(w, collision, pose)
	})
	return t
}

func newTriggerNative(w *World, collision *actor.Collision, pose actor.Transform) *newton.Body {
	nb := w.native.CreateBody(collision, pose, newton.BodyTypeKinematic)
	nb.SetTrigger(true)
	nb.SetAutoSleep(false)
	return nb
}

func (t *TriggerBody) SetTriggerCallback(callback TriggerCallback) {
	t.callbackMu.Lock()
	t.callback = callback
	t.callbackMu.Unlock()
}

func (t *TriggerBody) dispatch(other PhysicsBody, phase newton.TriggerPhase) {
	t.callbackMu.Lock()
	callback := t.callback
	t.callbackMu.Unlock()
	if callback == nil {
		return
	}

	switch phase {
	case newton.TriggerEnter:
		callback.OnEnter(other)
	case newton.TriggerInside:
		callback.OnInside(other)
	case newton.TriggerExit:
		callback.OnExit(other)
	}
}

// ReCreateTrigger swaps the trigger geometry. The old native body is
// destroyed and the new one installed in a single exclusive section, so a
// step never sees the trigger half built. The handle stays the same.
func (t *TriggerBody) ReCreateTrigger(collision *actor.Collision) {
	if collision == nil || t.destroyed.Load() {
		return
	}
	w := t.world
	collision.Retain()
	w.Exec(func() {
		defer collision.Release()
		old := t.native.Load()
		if old == nil {
			return
		}
		pose := old.Matrix()

		nb := newTriggerNative(w, collision, pose)
		w.unbind(t.Body)
		w.bind(t.Body, nb)

		w.sceneMu.Lock()
		t.collision = collision
		w.sceneMu.Unlock()
		w.logger.Debugf("trigger %q recreated with a %s", t.name, collision.Type())
	})
}
