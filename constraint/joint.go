// Package constraint implements joints between the bodies of an ogrenewt
// world. A joint queues its constraint rows while the solver asks for them;
// the queue is flushed into whichever row API the native world was built
// with, so joint code never depends on the solver generation.
package constraint

import (
	"sync"
	"sync/atomic"

	"github.com/akmonengine/ogrenewt"
	"github.com/akmonengine/ogrenewt/actor"
	"github.com/akmonengine/ogrenewt/internal/newton"
	"github.com/go-gl/mathgl/mgl64"
)

// DestructorCallback runs exactly once, when the joint goes away either by
// Destroy or with one of its bodies
type DestructorCallback func(j *Joint)

type submitFunc func(j *Joint, timestep float64)

// Joint links a child body to a parent body, or to the world when the parent
// is nil
type Joint struct {
	world  *ogrenewt.World
	handle ogrenewt.Handle
	child  ogrenewt.PhysicsBody
	parent ogrenewt.PhysicsBody

	native    atomic.Pointer[newton.Joint]
	destroyed atomic.Bool
	release   sync.Once
	submit    submitFunc

	// touched by the stepping goroutine only, while rows are submitted
	submitting bool
	active     *newton.Joint
	pending    []Row

	mu         sync.Mutex
	collide    bool
	frames     [2]actor.Transform
	submitted  []Row
	destructor DestructorCallback
}

func newJoint(child, parent ogrenewt.PhysicsBody, local0, local1 actor.Transform, submit submitFunc) *Joint {
	w := child.Core().World()
	j := &Joint{
		world:  w,
		child:  child,
		parent: parent,
		submit: submit,
		frames: [2]actor.Transform{local0, local1},
	}
	j.handle = w.RegisterJoint(j)

	w.Exec(func() {
		if _, ok := w.LookupJoint(j.handle); !ok {
			return
		}
		n0 := child.Core().Native()
		var n1 *newton.Body
		if parent != nil {
			n1 = parent.Core().Native()
		}
		if n0 == nil || (parent != nil && n1 == nil) {
			w.Logger().Debugf("joint %d: a body is already destroyed", j.handle)
			j.destroyed.Store(true)
			w.ForgetJoint(j.handle)
			return
		}

		nj := w.Native().CreateJoint(n0, n1)
		nj.UserData.Store(uint64(j.handle))
		j.mu.Lock()
		nj.SetCollisionState(j.collide)
		j.mu.Unlock()
		j.attach(nj)
		nj.SetDestructorCallback(func(nj *newton.Joint) {
			onNativeDestroyed(w, nj)
		})
		j.native.Store(nj)
	})
	return j
}

// onNativeDestroyed runs when the native world drops a joint on its own,
// for instance with one of its bodies
func onNativeDestroyed(w *ogrenewt.World, nj *newton.Joint) {
	h := ogrenewt.Handle(nj.UserData.Swap(0))
	if h == 0 {
		return
	}
	v, ok := w.LookupJoint(h)
	w.ForgetJoint(h)
	if !ok {
		return
	}
	j := v.(*Joint)
	j.destroyed.Store(true)
	j.native.Store(nil)
	j.released()
}

func (j *Joint) released() {
	j.release.Do(func() {
		j.mu.Lock()
		destructor := j.destructor
		j.mu.Unlock()
		if destructor != nil {
			destructor(j)
		}
	})
}

func (j *Joint) World() *ogrenewt.World      { return j.world }
func (j *Joint) Handle() ogrenewt.Handle     { return j.handle }
func (j *Joint) Child() ogrenewt.PhysicsBody { return j.child }

// Parent returns nil for a joint attached to the world
func (j *Joint) Parent() ogrenewt.PhysicsBody { return j.parent }

func (j *Joint) IsDestroyed() bool { return j.destroyed.Load() }

// Native returns the native joint, nil once destroyed
func (j *Joint) Native() *newton.Joint { return j.native.Load() }

// Destroy releases the native joint exactly once. The handle stops resolving
// immediately; the native release waits for an in-flight step.
func (j *Joint) Destroy() {
	if !j.destroyed.CompareAndSwap(false, true) {
		return
	}
	w := j.world
	w.ForgetJoint(j.handle)
	w.Exec(func() {
		nj := j.native.Swap(nil)
		if nj != nil {
			nj.UserData.Store(0)
			w.Native().DestroyJoint(nj)
		}
		j.released()
	})
}

func (j *Joint) SetDestructorCallback(callback DestructorCallback) {
	j.mu.Lock()
	j.destructor = callback
	j.mu.Unlock()
}

// SetCollisionState lets the two linked bodies collide with each other
func (j *Joint) SetCollisionState(collide bool) {
	j.mu.Lock()
	j.collide = collide
	j.mu.Unlock()
	if j.destroyed.Load() {
		return
	}
	j.world.Exec(func() {
		if nj := j.native.Load(); nj != nil {
			nj.SetCollisionState(collide)
		}
	})
}

func (j *Joint) CollisionState() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.collide
}

// SetFrames stores the joint frames local to the child and to the parent.
// They are used to draw the joint.
func (j *Joint) SetFrames(local0, local1 actor.Transform) {
	j.mu.Lock()
	j.frames = [2]actor.Transform{local0, local1}
	j.mu.Unlock()
}

func (j *Joint) Frames() (local0, local1 actor.Transform) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.frames[0], j.frames[1]
}

// GlobalFrames returns the joint frames in world space, from the last
// promoted body poses
func (j *Joint) GlobalFrames() (global0, global1 actor.Transform) {
	local0, local1 := j.Frames()
	return LocalToGlobal(local0, bodyPose(j.child)), LocalToGlobal(local1, bodyPose(j.parent))
}

func bodyPose(body ogrenewt.PhysicsBody) actor.Transform {
	if body == nil {
		return actor.NewTransform()
	}
	position, orientation := body.Core().PositionOrientation()
	return actor.Transform{Position: position, Rotation: orientation}
}

// RowCount returns the number of rows submitted in the last substep
func (j *Joint) RowCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.submitted)
}

// SubmittedRows returns a copy of the rows submitted in the last substep,
// in submission order
func (j *Joint) SubmittedRows() []Row {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Row(nil), j.submitted...)
}

// RowForce returns the force the solver applied through row i in the last
// step. An out of range i is clamped to the nearest row.
func (j *Joint) RowForce(i int) float64 {
	nj := j.native.Load()
	if nj == nil {
		return 0
	}
	n := nj.RowCount()
	if n == 0 {
		return 0
	}
	if i < 0 || i >= n {
		clamped := min(max(i, 0), n-1)
		j.world.Logger().Debugf("joint %d: row %d out of range, using row %d", j.handle, i, clamped)
		i = clamped
	}
	return nj.RowForce(i)
}

// ChildMatrix returns the live child pose. It is meant for row submission.
func (j *Joint) ChildMatrix() actor.Transform {
	if j.active == nil {
		return bodyPose(j.child)
	}
	return j.active.Body0().Matrix()
}

// ParentMatrix returns the live parent pose, the identity for the world.
// It is meant for row submission.
func (j *Joint) ParentMatrix() actor.Transform {
	if j.active == nil || j.active.Body1() == nil {
		return bodyPose(j.parent)
	}
	return j.active.Body1().Matrix()
}

// LocalToGlobal maps the stored frames with the live body poses
func (j *Joint) LocalToGlobal() (global0, global1 actor.Transform) {
	local0, local1 := j.Frames()
	return LocalToGlobal(local0, j.ChildMatrix()), LocalToGlobal(local1, j.ParentMatrix())
}

// PinAndDirToLocal expresses a world pin in both body frames, using the live
// body poses
func (j *Joint) PinAndDirToLocal(pin, dir mgl64.Vec3) (local0, local1 actor.Transform) {
	return PinAndDirToLocal(pin, dir, j.ChildMatrix(), j.ParentMatrix())
}

// AddLinearRow queues a row keeping p0 on the child and p1 on the parent
// together along dir
func (j *Joint) AddLinearRow(p0, p1, dir mgl64.Vec3) {
	j.addRow(Row{Kind: RowLinear, Point0: p0, Point1: p1, Direction: dir})
}

// AddAngularRow queues a row driving the relative angle about dir to zero
func (j *Joint) AddAngularRow(relativeAngle float64, dir mgl64.Vec3) {
	j.addRow(Row{Kind: RowAngular, Angle: relativeAngle, Direction: dir})
}

func (j *Joint) AddGeneralRow(linear0, angular0, linear1, angular1 mgl64.Vec3) {
	j.addRow(Row{Kind: RowGeneral, Linear0: linear0, Angular0: angular0, Linear1: linear1, Angular1: angular1})
}

func (j *Joint) addRow(row Row) {
	if !j.submitting {
		j.world.Logger().Debugf("joint %d: %s row added outside of submission, dropped", j.handle, row.Kind)
		return
	}
	j.pending = append(j.pending, row)
}

// last returns the row added last, nil when there is none
func (j *Joint) last(setter string) *Row {
	if !j.submitting || len(j.pending) == 0 {
		j.world.Logger().Debugf("joint %d: %s without a pending row", j.handle, setter)
		return nil
	}
	return &j.pending[len(j.pending)-1]
}

// SetRowStiffness sets the share of the position error the last row
// corrects per substep, in [0,1]
func (j *Joint) SetRowStiffness(stiffness float64) {
	if row := j.last("SetRowStiffness"); row != nil {
		row.Stiffness = mgl64.Clamp(stiffness, 0, 1)
		row.HasStiffness = true
	}
}

func (j *Joint) SetRowAcceleration(acceleration float64) {
	if row := j.last("SetRowAcceleration"); row != nil {
		row.Acceleration = acceleration
		row.HasAcceleration = true
	}
}

func (j *Joint) SetRowSpringDamper(k, d float64) {
	if row := j.last("SetRowSpringDamper"); row != nil {
		row.Spring = SpringDamper{K: k, D: d}
		row.HasSpring = true
	}
}

// SetRowMinimumFriction bounds the force of the last row from below
func (j *Joint) SetRowMinimumFriction(friction float64) {
	if row := j.last("SetRowMinimumFriction"); row != nil {
		row.MinFriction = friction
		row.HasMinFriction = true
	}
}

// SetRowMaximumFriction bounds the force of the last row from above
func (j *Joint) SetRowMaximumFriction(friction float64) {
	if row := j.last("SetRowMaximumFriction"); row != nil {
		row.MaxFriction = friction
		row.HasMaxFriction = true
	}
}

// SubmitFunc adds the rows of a custom joint for one substep
type SubmitFunc func(j *CustomJoint, timestep float64)

// CustomJoint is a joint whose rows come from a user function
type CustomJoint struct {
	*Joint
}

// NewCustomJoint links child to parent, or to the world when parent is nil.
// submit runs on the stepping goroutine once per substep.
func NewCustomJoint(child, parent ogrenewt.PhysicsBody, submit SubmitFunc) *CustomJoint {
	c := &CustomJoint{}
	identity := actor.NewTransform()
	c.Joint = newJoint(child, parent, identity, identity, func(j *Joint, timestep float64) {
		if submit != nil {
			submit(&CustomJoint{Joint: j}, timestep)
		}
	})
	return c
}
