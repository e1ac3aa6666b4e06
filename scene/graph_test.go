package scene

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDynamicNodeFollowsParent(t *testing.T) {
	g := NewGraph()
	parent := g.RootNode().CreateChild("parent", false)
	child := parent.CreateChild("child", false)

	parent.SetPosition(mgl64.Vec3{10, 0, 0})
	parent.SetOrientation(mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0}))
	child.SetPosition(mgl64.Vec3{0, 0, -1})

	derived := child.Derived(false)
	// -Z rotated a quarter turn about Y is -X
	assert.InDelta(t, 9.0, derived.Position.X(), 1e-9)
	assert.InDelta(t, 0.0, derived.Position.Z(), 1e-9)
	assert.Equal(t, 0, child.(*GraphNode).Rederivations())
}

func TestStaticNodeKeepsCacheUntilForced(t *testing.T) {
	g := NewGraph()
	node := g.RootNode().CreateChild("static", true)

	node.SetPosition(mgl64.Vec3{1, 2, 3})
	assert.Equal(t, mgl64.Vec3{}, node.Derived(false).Position)

	assert.Equal(t, mgl64.Vec3{1, 2, 3}, node.Derived(true).Position)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, node.Derived(false).Position)
	assert.Equal(t, 1, node.(*GraphNode).Rederivations())
}

func TestParentScaleAppliesToChild(t *testing.T) {
	g := NewGraph()
	parent := g.Root().CreateChild("parent", false).(*GraphNode)
	parent.SetScale(mgl64.Vec3{2, 2, 2})
	child := parent.CreateChild("child", false)
	child.SetPosition(mgl64.Vec3{1, 0, 0})

	derived := child.Derived(false)
	assert.Equal(t, mgl64.Vec3{2, 0, 0}, derived.Position)
	assert.Equal(t, mgl64.Vec3{2, 2, 2}, derived.Scale)
}

func TestManualObjects(t *testing.T) {
	g := NewGraph()
	object := g.CreateManualObject("wire")
	red := colorful.Color{R: 1}

	object.Line(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, red)
	assert.Equal(t, 0, object.LineCount(), "lines outside a section are dropped")

	object.Begin("debug")
	object.Line(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, red)
	object.Line(mgl64.Vec3{}, mgl64.Vec3{0, 1, 0}, red)
	object.End()
	require.Equal(t, 2, object.LineCount())
	assert.Equal(t, "debug", object.(*LineObject).Material())

	node := g.RootNode().CreateChild("n", false)
	node.AttachObject(object)
	assert.Len(t, node.(*GraphNode).Objects(), 1)
	node.DetachObject(object)
	assert.Empty(t, node.(*GraphNode).Objects())

	g.DestroyManualObject(object)
	g.DestroyManualObject(object)
	assert.Equal(t, 0, g.ManualObjectCount())
	assert.Equal(t, 1, g.DestroyedObjects())
}

func TestDestroyNodeDetachesFromParent(t *testing.T) {
	g := NewGraph()
	node := g.RootNode().CreateChild("n", false)

	g.DestroyNode(node)

	assert.Nil(t, node.Parent())
	assert.Empty(t, g.Root().children)
}
