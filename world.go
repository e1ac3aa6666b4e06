// Package ogrenewt binds the bodies of a physics world to the scene nodes that
// display them. Each body keeps a double-buffered pose written by the physics
// step and interpolated into its node by the render sync pass; joints, ray
// casts and debug overlays are built on top in sub-packages.
//
// The native world is stepped under an exclusive lock. Mutations requested
// while a step or a render sync is in flight are queued and run right after
// it, so destroying a body from any callback is always safe.
package ogrenewt

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akmonengine/ogrenewt/actor"
	"github.com/akmonengine/ogrenewt/internal/arena"
	"github.com/akmonengine/ogrenewt/internal/newton"
	"github.com/go-gl/mathgl/mgl64"
)

// Handle identifies a body or a joint registered with a World. A destroyed
// object's handle never resolves again.
type Handle = arena.Handle

type World struct {
	config Config
	logger Logger
	native *newton.World

	bodies arena.Table[PhysicsBody]
	joints arena.Table[any]

	// stepMu serializes every access to the native world.
	stepMu sync.Mutex
	// sceneMu guards pose promotion and every scene node write. It is always
	// taken after stepMu.
	sceneMu sync.Mutex

	pendingMu sync.Mutex
	busy      int
	syncing   int
	pending   []func()

	clockMu     sync.Mutex
	accumulator float64
	fraction    atomic.Uint64
}

func NewWorld(opts ...Option) *World {
	w := &World{
		config: DefaultConfig(),
		logger: NewNopLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.config = w.config.sanitize(w.logger)

	generation, err := newton.ParseGeneration(w.config.Generation)
	if err != nil {
		w.logger.Warnf("%v, falling back to %s", err, newton.GenerationNDK4)
		generation = newton.GenerationNDK4
	}

	w.native = newton.NewWorld(newton.Options{
		Generation:       generation,
		Substeps:         w.config.Substeps,
		SolverIterations: w.config.SolverIterations,
		Workers:          w.config.Workers,
		CellSize:         w.config.CellSize,
	})
	w.native.SetTriggerListener(w.dispatchTrigger)
	w.fraction.Store(math.Float64bits(1))

	w.logger.Debugf("physics world created: %s solver, %v Hz, %d substeps", generation, w.config.UpdateFPS, w.config.Substeps)
	return w
}

func (w *World) Logger() Logger { return w.logger }
func (w *World) Config() Config { return w.config }

// Generation returns the joint row API of the native world, "ndk3" or "ndk4"
func (w *World) Generation() string { return w.native.Generation().String() }

// Native exposes the native world to the joint and ray cast layers. It must
// only be used from Exec, from a physics callback, or while nothing steps.
func (w *World) Native() *newton.World { return w.native }

// Gravity is the default gravity given to new bodies
func (w *World) Gravity() mgl64.Vec3 { return w.config.GravityVec() }

// Bodies returns a snapshot of the live bodies
func (w *World) Bodies() []PhysicsBody {
	return w.bodies.Values()
}

func (w *World) BodyCount() int { return w.bodies.Len() }

// Lookup resolves a body handle
func (w *World) Lookup(handle Handle) (PhysicsBody, bool) {
	return w.bodies.Get(handle)
}

// resolve maps a native body back to its adapter body through the handle in
// its user data
func (w *World) resolve(nb *newton.Body) *Body {
	if nb == nil {
		return nil
	}
	pb, ok := w.bodies.Get(Handle(nb.UserData.Load()))
	if !ok {
		return nil
	}
	return pb.Core()
}

// RegisterJoint stores an adapter joint and returns the handle its native
// joint carries
func (w *World) RegisterJoint(joint any) Handle { return w.joints.Insert(joint) }

func (w *World) LookupJoint(handle Handle) (any, bool) { return w.joints.Get(handle) }

// ForgetJoint drops a joint handle; it reports false if it was already gone
func (w *World) ForgetJoint(handle Handle) bool {
	_, ok := w.joints.Remove(handle)
	return ok
}

func (w *World) JointCount() int { return w.joints.Len() }

// Joints returns a snapshot of the live joints
func (w *World) Joints() []any { return w.joints.Values() }

// Exec runs fn with exclusive access to the native world. While a step or a
// render sync is in flight fn is queued and runs right after it.
func (w *World) Exec(fn func()) {
	w.pendingMu.Lock()
	if w.busy > 0 || w.syncing > 0 {
		w.pending = append(w.pending, fn)
		w.pendingMu.Unlock()
		return
	}
	w.busy++
	w.pendingMu.Unlock()

	w.stepMu.Lock()
	fn()
	w.stepMu.Unlock()

	w.pendingMu.Lock()
	w.busy--
	w.pendingMu.Unlock()
	w.flushPending()
}

// flushPending runs the queued mutations once no step or sync is in flight.
// The caller must hold neither stepMu nor sceneMu.
func (w *World) flushPending() {
	for {
		w.pendingMu.Lock()
		if w.busy > 0 || w.syncing > 0 || len(w.pending) == 0 {
			w.pendingMu.Unlock()
			return
		}
		queue := w.pending
		w.pending = nil
		w.busy++
		w.pendingMu.Unlock()

		w.stepMu.Lock()
		for _, fn := range queue {
			fn()
		}
		w.stepMu.Unlock()

		w.pendingMu.Lock()
		w.busy--
		w.pendingMu.Unlock()
	}
}

func (w *World) beginSync() {
	w.pendingMu.Lock()
	w.syncing++
	w.pendingMu.Unlock()
}

func (w *World) endSync() {
	w.pendingMu.Lock()
	w.syncing--
	w.pendingMu.Unlock()
	w.flushPending()
}

// Step advances the native world by dt. Every body's previous pose becomes
// the current pose it had before the step.
func (w *World) Step(dt float64) {
	if dt <= 0 {
		return
	}
	w.pendingMu.Lock()
	w.busy++
	w.pendingMu.Unlock()

	w.stepMu.Lock()
	w.native.Step(dt)
	w.settle()
	w.stepMu.Unlock()

	w.pendingMu.Lock()
	w.busy--
	w.pendingMu.Unlock()
	w.flushPending()
}

// settle finishes the double buffer of the bodies the step did not move and
// snapshots the player controller states
func (w *World) settle() {
	bodies := w.bodies.Values()

	w.sceneMu.Lock()
	for _, pb := range bodies {
		b := pb.Core()
		if b.promoted {
			b.promoted = false
			continue
		}
		b.pose.PreviousPosition = b.pose.CurrentPosition
		b.pose.PreviousOrientation = b.pose.CurrentOrientation
	}
	w.sceneMu.Unlock()

	for _, pb := range bodies {
		if p, ok := pb.(*PlayerControllerBody); ok {
			p.refresh()
		}
	}
}

// Update runs as many fixed steps as elapsed seconds allow, at most
// Config.MaxSteps, and returns the interpolation fraction left for the render
// sync.
func (w *World) Update(elapsed float64) float64 {
	dt := w.config.Timestep()

	w.clockMu.Lock()
	defer w.clockMu.Unlock()

	w.accumulator += max(elapsed, 0)
	steps := 0
	for w.accumulator >= dt && steps < w.config.MaxSteps {
		w.Step(dt)
		w.accumulator -= dt
		steps++
	}
	if w.accumulator >= dt {
		w.logger.Debugf("physics is late, dropping %.4fs", w.accumulator-math.Mod(w.accumulator, dt))
		w.accumulator = math.Mod(w.accumulator, dt)
	}

	fraction := w.accumulator / dt
	w.fraction.Store(math.Float64bits(fraction))
	return fraction
}

// InterpolationFraction returns the fraction computed by the last Update
func (w *World) InterpolationFraction() float64 {
	return math.Float64frombits(w.fraction.Load())
}

// SyncNodes interpolates every body into its scene node
func (w *World) SyncNodes(fraction float64) {
	w.beginSync()
	defer w.endSync()

	for _, pb := range w.bodies.Values() {
		pb.Core().UpdateNode(fraction)
	}
}

// Run steps the world at Config.UpdateFPS until ctx is done
func (w *World) Run(ctx context.Context) error {
	period := time.Duration(w.config.Timestep() * float64(time.Second))
	last := time.Now()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			w.Update(now.Sub(last).Seconds())
			last = now
		}
	}
}

// RayHit is one hit reported by CastRay
type RayHit struct {
	Body        PhysicsBody
	Collision   *actor.Collision
	Point       mgl64.Vec3
	Normal      mgl64.Vec3
	CollisionID int
	// Distance is the parametric distance along the ray, in [0,1]
	Distance float64
}

// CastRay queries the world along start-end. prefilter may exclude bodies;
// filter receives every hit closer than the current bound and returns the new
// bound. CastRay waits for an in-flight step and must not be called from a
// physics callback.
func (w *World) CastRay(start, end mgl64.Vec3, prefilter func(body PhysicsBody, collision *actor.Collision) bool, filter func(hit RayHit) float64) {
	if filter == nil {
		return
	}
	w.stepMu.Lock()
	defer w.stepMu.Unlock()

	var nativePrefilter newton.RayPrefilter
	if prefilter != nil {
		nativePrefilter = func(nb *newton.Body, collision *actor.Collision) bool {
			b := w.resolve(nb)
			if b == nil {
				return false
			}
			return prefilter(b.self, collision)
		}
	}
	w.native.RayCast(start, end, func(nb *newton.Body, collision *actor.Collision, contact, normal mgl64.Vec3, id int, param float64) float64 {
		b := w.resolve(nb)
		if b == nil {
			return 1
		}
		return filter(RayHit{
			Body:        b.self,
			Collision:   collision,
			Point:       contact,
			Normal:      normal,
			CollisionID: id,
			Distance:    param,
		})
	}, nativePrefilter)
}

func (w *World) dispatchTrigger(trigger, other *newton.Body, phase newton.TriggerPhase) {
	tb := w.resolve(trigger)
	ob := w.resolve(other)
	if tb == nil || ob == nil {
		return
	}
	t, ok := tb.self.(*TriggerBody)
	if !ok {
		return
	}
	t.dispatch(ob.self, phase)
}

func (w *World) onNativeDestroyed(nb *newton.Body) {
	h := Handle(nb.UserData.Swap(0))
	pb, ok := w.bodies.Remove(h)
	if !ok {
		return
	}
	b := pb.Core()
	b.destroyed.Store(true)
	b.native.Store(nil)
}

// Destroy tears the world down: every joint, then every body
func (w *World) Destroy() {
	w.Exec(func() {
		w.sceneMu.Lock()
		for _, pb := range w.bodies.Values() {
			pb.Core().node = nil
		}
		w.sceneMu.Unlock()
		w.native.DestroyAll()
	})
}
