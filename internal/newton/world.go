// Package newton is a headless rigid body solver exposing the surface of the
// Newton Dynamics SDK the adapter layer is written against: bodies carrying an
// opaque user data word, transform and force callbacks, contact joints, ray
// casts with a clipping filter, player capsules and bilateral joints with
// either the NDK3 row API or the NDK4 Jacobian descriptor.
//
// A World is not safe for concurrent use; callers serialize Step against
// body and joint creation and destruction.
package newton

import (
	"fmt"
	"strings"

	"github.com/akmonengine/ogrenewt/actor"
)

// Generation selects the joint row API a world uses
type Generation int

const (
	GenerationNDK3 Generation = 3
	GenerationNDK4 Generation = 4
)

func (g Generation) String() string {
	switch g {
	case GenerationNDK3:
		return "ndk3"
	case GenerationNDK4:
		return "ndk4"
	}
	return fmt.Sprintf("generation(%d)", int(g))
}

// ParseGeneration accepts "ndk3" and "ndk4", case insensitive
func ParseGeneration(s string) (Generation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ndk3", "3":
		return GenerationNDK3, nil
	case "ndk4", "4", "":
		return GenerationNDK4, nil
	}
	return 0, fmt.Errorf("unknown solver generation %q", s)
}

const (
	DefaultWorkers          = 1
	DefaultSubsteps         = 1
	DefaultSolverIterations = 4
	DefaultCellSize         = 2.0
	defaultGridCells        = 1024
)

// Options configure a World
type Options struct {
	Generation       Generation
	Substeps         int
	SolverIterations int
	Workers          int
	CellSize         float64
}

type World struct {
	generation       Generation
	substeps         int
	solverIterations int
	workers          int

	grid     *SpatialGrid
	bodies   []*Body
	joints   []*Joint
	players  []*PlayerController
	triggers triggerEvents

	stepCount uint64
}

func NewWorld(opts Options) *World {
	if opts.Generation != GenerationNDK3 {
		opts.Generation = GenerationNDK4
	}
	if opts.CellSize <= 0 {
		opts.CellSize = DefaultCellSize
	}
	return &World{
		generation:       opts.Generation,
		substeps:         max(DefaultSubsteps, opts.Substeps),
		solverIterations: max(1, opts.SolverIterations),
		workers:          max(DefaultWorkers, opts.Workers),
		grid:             NewSpatialGrid(opts.CellSize, defaultGridCells),
		triggers:         newTriggerEvents(),
	}
}

func (w *World) Generation() Generation { return w.generation }
func (w *World) Substeps() int          { return w.substeps }
func (w *World) StepCount() uint64      { return w.stepCount }
func (w *World) BodyCount() int         { return len(w.bodies) }
func (w *World) JointCount() int        { return len(w.joints) }

// Bodies returns a snapshot of the bodies in creation order
func (w *World) Bodies() []*Body {
	return append([]*Body(nil), w.bodies...)
}

// SetTriggerListener registers the callback receiving trigger overlaps
func (w *World) SetTriggerListener(listener TriggerListener) {
	w.triggers.listener = listener
}

// CreateBody adds a body using collision, which it retains
func (w *World) CreateBody(collision *actor.Collision, transform actor.Transform, bodyType BodyType) *Body {
	b := newBody(w, collision, transform, bodyType)
	w.bodies = append(w.bodies, b)
	return b
}

// DestroyBody removes the body with its joints, runs its destructor and
// releases its collision. Destroying twice does nothing.
func (w *World) DestroyBody(b *Body) {
	if b == nil || b.destroyed {
		return
	}
	b.destroyed = true

	for _, j := range w.Joints() {
		if j.body0 == b || j.body1 == b {
			w.DestroyJoint(j)
		}
	}

	w.bodies = remove(w.bodies, b)
	for i, p := range w.players {
		if p.body == b {
			w.players = append(w.players[:i], w.players[i+1:]...)
			break
		}
	}
	w.triggers.forget(b)
	b.setContacts(nil)

	if b.destructor != nil {
		b.destructor(b)
	}
	b.collision.Release()
}

// CreateJoint links body0 to body1; body1 nil links body0 to the world
func (w *World) CreateJoint(body0, body1 *Body) *Joint {
	j := &Joint{world: w, body0: body0, body1: body1}
	w.joints = append(w.joints, j)
	return j
}

// Joints returns a snapshot of the joints in creation order
func (w *World) Joints() []*Joint {
	return append([]*Joint(nil), w.joints...)
}

// DestroyJoint removes the joint and runs its destructor once
func (w *World) DestroyJoint(j *Joint) {
	if j == nil || j.destroyed {
		return
	}
	j.destroyed = true
	w.joints = remove(w.joints, j)
	if j.destructor != nil {
		j.destructor(j)
	}
}

// DestroyAll tears the world down, joints first
func (w *World) DestroyAll() {
	for _, j := range w.Joints() {
		w.DestroyJoint(j)
	}
	for _, b := range w.Bodies() {
		w.DestroyBody(b)
	}
}

func remove[T comparable](list []T, item T) []T {
	for i, v := range list {
		if v == item {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Step advances the simulation by dt, split in substeps. Transform callbacks
// run once at the end of the step for every body that moved.
func (w *World) Step(dt float64) {
	if dt <= 0 {
		return
	}
	h := dt / float64(w.substeps)

	start := make(map[*Body]actor.Transform, len(w.bodies))
	for _, b := range w.bodies {
		if b.bodyType != BodyTypeStatic {
			start[b] = b.transform
		}
	}

	var contacts []*ContactJoint
	for range w.substeps {
		w.applyForces(h)
		for _, b := range w.bodies {
			b.integrateVelocity(h)
		}
		for _, p := range w.players {
			p.update(w, h)
		}

		w.solveJoints(h)

		for _, b := range w.bodies {
			b.integratePosition(h)
		}

		contacts = w.triggers.record(w.detectCollision())

		for _, c := range contacts {
			c.solvePosition(h)
		}
		for _, b := range w.bodies {
			b.updateVelocity(h)
		}
		for _, c := range contacts {
			c.solveVelocity(h)
		}
		for _, b := range w.bodies {
			b.trySleep(h)
		}
	}

	w.publishContacts(contacts)
	w.triggers.flush()
	w.notifyTransforms(start)
	w.stepCount++
}

func (w *World) applyForces(h float64) {
	active := make([]*Body, 0, len(w.bodies))
	for _, b := range w.bodies {
		if b.bodyType == BodyTypeDynamic && !b.isSleeping && b.forceCallback != nil {
			active = append(active, b)
		}
	}
	task(w.workers, active, func(worker int, b *Body) {
		b.forceCallback(b, h, worker)
	})
}

func (w *World) solveJoints(h float64) {
	if len(w.joints) == 0 {
		return
	}
	for _, j := range w.joints {
		// a joint keeps both of its bodies awake
		if !j.body0.isSleeping || (j.body1 != nil && !j.body1.isSleeping) {
			j.body0.Awake()
			if j.body1 != nil {
				j.body1.Awake()
			}
		}
		j.gatherRows(w.generation, h)
	}
	solveJoints(w.joints, h, w.solverIterations)
}

func (w *World) detectCollision() []*ContactJoint {
	w.grid.Clear()
	for i, b := range w.bodies {
		w.grid.Insert(i, b.aabb)
	}
	w.grid.SortCells()

	excluded := make(map[[2]*Body]bool)
	for _, j := range w.joints {
		if !j.collisionState && j.body1 != nil {
			excluded[[2]*Body{j.body0, j.body1}] = true
			excluded[[2]*Body{j.body1, j.body0}] = true
		}
	}

	var contacts []*ContactJoint
	for _, pair := range w.grid.FindPairs(w.bodies) {
		if excluded[[2]*Body{pair.BodyA, pair.BodyB}] {
			continue
		}
		c := collide(pair.BodyA, pair.BodyB)
		if c == nil {
			continue
		}
		if !c.BodyA.trigger && !c.BodyB.trigger {
			wakePair(c.BodyA, c.BodyB)
		}
		contacts = append(contacts, c)
	}
	return contacts
}

func wakePair(a, b *Body) {
	if a.isSleeping && moves(b) {
		a.Awake()
	}
	if b.isSleeping && moves(a) {
		b.Awake()
	}
}

func (w *World) publishContacts(contacts []*ContactJoint) {
	byBody := make(map[*Body][]*ContactJoint)
	for _, c := range contacts {
		byBody[c.BodyA] = append(byBody[c.BodyA], c)
		byBody[c.BodyB] = append(byBody[c.BodyB], c)
	}
	for _, b := range w.bodies {
		b.setContacts(byBody[b])
	}
}

func (w *World) notifyTransforms(start map[*Body]actor.Transform) {
	moved := make([]*Body, 0, len(start))
	for _, b := range w.bodies {
		if b.transformCallback == nil {
			continue
		}
		if previous, ok := start[b]; ok && previous != b.transform {
			moved = append(moved, b)
		}
	}
	task(w.workers, moved, func(worker int, b *Body) {
		b.transformCallback(b, b.transform, worker)
	})
}
