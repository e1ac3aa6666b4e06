package debugger

import (
	"bytes"
	"testing"

	"github.com/akmonengine/ogrenewt"
	"github.com/akmonengine/ogrenewt/actor"
	"github.com/akmonengine/ogrenewt/constraint"
	"github.com/akmonengine/ogrenewt/raycast"
	"github.com/akmonengine/ogrenewt/scene"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const step = 1.0 / 60.0

func newBox(w *ogrenewt.World, name string, mass float64, position mgl64.Vec3) *ogrenewt.Body {
	collision := actor.NewCollision(&actor.Box{HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}})
	defer collision.Release()
	pose := actor.NewTransform()
	pose.Position = position
	return w.CreateRigidBody(name, collision, mass, pose)
}

// objects returns the line objects drawn under the debug root
func objects(g *scene.Graph) []*scene.LineObject {
	var out []*scene.LineObject
	var walk func(n *scene.GraphNode)
	walk = func(n *scene.GraphNode) {
		for _, o := range n.Objects() {
			if lines, ok := o.(*scene.LineObject); ok {
				out = append(out, lines)
			}
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(g.Root())
	return out
}

func TestShowBuildsOnceThenRepositions(t *testing.T) {
	w := ogrenewt.NewWorld()
	graph := scene.NewGraph()
	crate := newBox(w, "crate", 1, mgl64.Vec3{0, 5, 0})
	crate.SetStandardForceCallback()
	newBox(w, "ground", 0, mgl64.Vec3{0, -1, 0})

	d := New(w, graph)
	d.ShowDebugInformation()
	require.Equal(t, Stats{Built: 2}, d.Stats())
	require.Equal(t, 2, graph.ManualObjectCount())
	for _, o := range objects(graph) {
		assert.Equal(t, 24, o.LineCount(), "six quads per box")
	}

	for range 10 {
		w.Step(step)
	}
	d.ShowDebugInformation()

	assert.Equal(t, Stats{Built: 2, Repositioned: 2}, d.Stats())
	assert.Equal(t, 2, graph.ManualObjectCount())
	assert.Equal(t, 0, graph.DestroyedObjects())

	position, _ := crate.PositionOrientation()
	assert.Less(t, position.Y(), 5.0)
	node := d.bodies[crate.Handle()].node
	assert.Equal(t, position, node.Position())
}

func TestShowRebuildsChangedShape(t *testing.T) {
	w := ogrenewt.NewWorld()
	graph := scene.NewGraph()
	sphere := actor.NewCollision(&actor.Sphere{Radius: 1})
	defer sphere.Release()
	trigger := w.CreateTriggerBody("zone", sphere, actor.NewTransform(), nil)

	d := New(w, graph)
	d.ShowDebugInformation()
	before := d.bodies[trigger.Handle()].object

	box := actor.NewCollision(&actor.Box{HalfExtents: mgl64.Vec3{1, 1, 1}})
	defer box.Release()
	trigger.ReCreateTrigger(box)
	d.ShowDebugInformation()

	assert.Equal(t, Stats{Built: 2, Pruned: 1}, d.Stats())
	assert.Equal(t, 1, graph.ManualObjectCount())
	assert.Equal(t, 1, graph.DestroyedObjects())
	assert.NotEqual(t, before.Name(), d.bodies[trigger.Handle()].object.Name())
	assert.Equal(t, 24, d.bodies[trigger.Handle()].object.LineCount())
}

func TestShowPrunesGoneBodies(t *testing.T) {
	tests := []struct {
		name   string
		remove func(b *ogrenewt.Body)
	}{
		{"destroyed", func(b *ogrenewt.Body) { b.Destroy() }},
		{"debug disabled", func(b *ogrenewt.Body) { b.SetDebug(false) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ogrenewt.NewWorld()
			graph := scene.NewGraph()
			crate := newBox(w, "crate", 1, mgl64.Vec3{})
			newBox(w, "other", 1, mgl64.Vec3{3, 0, 0})

			d := New(w, graph)
			d.ShowDebugInformation()
			tt.remove(crate)
			d.ShowDebugInformation()
			d.ShowDebugInformation()

			assert.Equal(t, 1, d.Stats().Pruned)
			assert.Equal(t, 1, graph.DestroyedObjects())
			assert.Equal(t, 1, graph.ManualObjectCount())
		})
	}
}

func TestMaterialColors(t *testing.T) {
	var buf bytes.Buffer
	cfg := ogrenewt.DefaultConfig()
	cfg.Debug.DefaultColor = "#0000ff"
	cfg.Debug.MaterialColors = map[string]string{"wood": "#ff0000", "broken": "red"}
	w := ogrenewt.NewWorld(
		ogrenewt.WithConfig(cfg),
		ogrenewt.WithLogger(ogrenewt.NewWriterLogger(&buf, "", false)),
	)
	graph := scene.NewGraph()
	plank := newBox(w, "plank", 1, mgl64.Vec3{})
	plank.SetMaterialGroup("wood")
	stone := newBox(w, "stone", 1, mgl64.Vec3{3, 0, 0})

	d := New(w, graph)
	assert.Contains(t, buf.String(), "invalid color")
	assert.Contains(t, buf.String(), "broken")
	wood := d.ColorOf(plank)
	assert.True(t, wood.AlmostEqualRgb(colorful.Color{R: 1}), "wood is %v", wood)
	assert.True(t, d.ColorOf(stone).AlmostEqualRgb(colorful.Color{B: 1}))

	d.ShowDebugInformation()
	for _, line := range d.bodies[plank.Handle()].object.(*scene.LineObject).Lines() {
		assert.Equal(t, wood, line.Color)
	}

	d.SetMaterialColor("wood", colorful.Color{G: 1})
	d.ShowDebugInformation()
	assert.Equal(t, 3, d.Stats().Built, "a color change rebuilds the wireframe")
	require.Error(t, d.SetMaterialColorHex("stone", "#zzzzzz"))
}

func TestHideDestroysEverythingOnce(t *testing.T) {
	w := ogrenewt.NewWorld()
	graph := scene.NewGraph()
	a := newBox(w, "a", 1, mgl64.Vec3{})
	newBox(w, "b", 1, mgl64.Vec3{3, 0, 0})
	constraint.NewBallAndSocket(a, nil, mgl64.Vec3{0, 1, 0})

	d := New(w, graph)
	d.SetShowContacts(true)
	d.ShowDebugInformation()
	d.ShowRay(raycast.NewBasicRaycast(w, mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{5, 0, 0}, true))
	live := graph.ManualObjectCount()
	require.Equal(t, 5, live, "two bodies, one joint, contacts and rays")

	d.HideDebugInformation()
	d.HideDebugInformation()

	assert.Equal(t, 0, graph.ManualObjectCount())
	assert.Equal(t, live, graph.DestroyedObjects())
	assert.Empty(t, graph.Root().Children())

	d.ShowDebugInformation()
	assert.Equal(t, 4, graph.ManualObjectCount())
}

func TestShowJointFrames(t *testing.T) {
	w := ogrenewt.NewWorld()
	graph := scene.NewGraph()
	ball := newBox(w, "ball", 1, mgl64.Vec3{1, 0, 0})
	j := constraint.NewBallAndSocket(ball, nil, mgl64.Vec3{0, 0, 0})

	d := New(w, graph)
	d.ShowDebugInformation()
	require.Len(t, d.joints, 1)
	object := d.joints[j.Handle()].object
	assert.Equal(t, 6, object.LineCount(), "three axes per frame")

	d.ShowDebugInformation()
	assert.Equal(t, 6, object.LineCount(), "redrawn, not appended")

	j.Destroy()
	d.ShowDebugInformation()
	assert.Empty(t, d.joints)
}

func TestShowRay(t *testing.T) {
	w := ogrenewt.NewWorld()
	graph := scene.NewGraph()
	newBox(w, "near", 0, mgl64.Vec3{0, 0, -2})
	newBox(w, "far", 0, mgl64.Vec3{0, 0, -6})

	ray := raycast.NewBasicRaycast(w, mgl64.Vec3{}, mgl64.Vec3{0, 0, -10}, true)
	ray.SetDebugRecording(true)
	ray.SetPreFilter(func(body ogrenewt.PhysicsBody, _ *actor.Collision) bool {
		return body.Name() != "far"
	})
	ray.Go(w, mgl64.Vec3{}, mgl64.Vec3{0, 0, -10})
	require.Equal(t, 1, ray.HitCount())

	d := New(w, graph)
	d.ShowRay(ray)
	// the segment, one hit marker, one discarded marker
	assert.Equal(t, 7, d.rays.object.LineCount())

	d.ShowRay(raycast.New(nil, nil))
	assert.Equal(t, 8, d.rays.object.LineCount())

	d.HideRays()
	assert.Nil(t, d.rays)
	assert.Equal(t, 1, graph.DestroyedObjects())
}
