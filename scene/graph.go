package scene

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/lucasb-eyer/go-colorful"
)

// Graph is an in-memory scene graph. It keeps counters of forced
// re-derivations and destroyed objects so callers can check how often the
// expensive paths ran.
type Graph struct {
	mu        sync.Mutex
	root      *GraphNode
	objects   map[string]*LineObject
	destroyed int
}

func NewGraph() *Graph {
	g := &Graph{objects: make(map[string]*LineObject)}
	g.root = &GraphNode{graph: g, name: "root", orientation: mgl64.QuatIdent(), scale: mgl64.Vec3{1, 1, 1}}
	g.root.derived = Identity()
	return g
}

func (g *Graph) RootNode() Node { return g.root }

// Root returns the concrete root node
func (g *Graph) Root() *GraphNode { return g.root }

func (g *Graph) CreateManualObject(name string) ManualObject {
	g.mu.Lock()
	defer g.mu.Unlock()
	object := &LineObject{name: name}
	g.objects[name] = object
	return object
}

func (g *Graph) DestroyManualObject(object ManualObject) {
	if object == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.objects[object.Name()]; ok {
		delete(g.objects, object.Name())
		g.destroyed++
	}
}

// ManualObjectCount returns the number of live manual objects
func (g *Graph) ManualObjectCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.objects)
}

// DestroyedObjects returns how many manual objects were destroyed
func (g *Graph) DestroyedObjects() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.destroyed
}

func (g *Graph) DestroyNode(node Node) {
	n, ok := node.(*GraphNode)
	if !ok || n == g.root {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if n.parent == nil {
		return
	}
	children := n.parent.children
	for i, c := range children {
		if c == n {
			n.parent.children = append(children[:i], children[i+1:]...)
			break
		}
	}
	n.parent = nil
	n.objects = nil
}

// GraphNode is a node of Graph
type GraphNode struct {
	graph    *Graph
	name     string
	parent   *GraphNode
	children []*GraphNode
	static   bool
	objects  []Object

	position    mgl64.Vec3
	orientation mgl64.Quat
	scale       mgl64.Vec3

	derived       Derived
	dirty         bool
	rederivations int
}

func (n *GraphNode) Name() string { return n.name }

func (n *GraphNode) Parent() Node {
	n.graph.mu.Lock()
	defer n.graph.mu.Unlock()
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *GraphNode) IsStatic() bool { return n.static }

func (n *GraphNode) Position() mgl64.Vec3 {
	n.graph.mu.Lock()
	defer n.graph.mu.Unlock()
	return n.position
}

func (n *GraphNode) Orientation() mgl64.Quat {
	n.graph.mu.Lock()
	defer n.graph.mu.Unlock()
	return n.orientation
}

func (n *GraphNode) SetPosition(position mgl64.Vec3) {
	n.graph.mu.Lock()
	n.position = position
	n.invalidate()
	n.graph.mu.Unlock()
}

func (n *GraphNode) SetOrientation(orientation mgl64.Quat) {
	n.graph.mu.Lock()
	n.orientation = orientation
	n.invalidate()
	n.graph.mu.Unlock()
}

// SetScale sets the local scale
func (n *GraphNode) SetScale(scale mgl64.Vec3) {
	n.graph.mu.Lock()
	n.scale = scale
	n.invalidate()
	n.graph.mu.Unlock()
}

func (n *GraphNode) invalidate() {
	n.dirty = true
	for _, c := range n.children {
		c.invalidate()
	}
}

// Derived recomputes dirty dynamic nodes lazily. Static nodes keep their
// cached pose until update is set; forced recomputations are counted.
func (n *GraphNode) Derived(update bool) Derived {
	n.graph.mu.Lock()
	defer n.graph.mu.Unlock()
	if update {
		n.rederivations++
	}
	return n.derive(update)
}

func (n *GraphNode) derive(update bool) Derived {
	if n.parent == nil {
		return n.derived
	}
	if update || (n.dirty && !n.static) {
		parent := n.parent.derive(false)
		local := mgl64.Vec3{
			n.position.X() * parent.Scale.X(),
			n.position.Y() * parent.Scale.Y(),
			n.position.Z() * parent.Scale.Z(),
		}
		n.derived = Derived{
			Position:    parent.Position.Add(parent.Orientation.Rotate(local)),
			Orientation: parent.Orientation.Mul(n.orientation).Normalize(),
			Scale: mgl64.Vec3{
				parent.Scale.X() * n.scale.X(),
				parent.Scale.Y() * n.scale.Y(),
				parent.Scale.Z() * n.scale.Z(),
			},
		}
		n.dirty = false
	}
	return n.derived
}

// Rederivations returns how many times the derived pose was forced
func (n *GraphNode) Rederivations() int {
	n.graph.mu.Lock()
	defer n.graph.mu.Unlock()
	return n.rederivations
}

func (n *GraphNode) CreateChild(name string, static bool) Node {
	n.graph.mu.Lock()
	defer n.graph.mu.Unlock()
	child := &GraphNode{
		graph:       n.graph,
		name:        name,
		parent:      n,
		static:      static,
		orientation: mgl64.QuatIdent(),
		scale:       mgl64.Vec3{1, 1, 1},
		dirty:       true,
	}
	child.derive(true)
	n.children = append(n.children, child)
	return child
}

func (n *GraphNode) AttachObject(object Object) {
	n.graph.mu.Lock()
	defer n.graph.mu.Unlock()
	n.objects = append(n.objects, object)
}

func (n *GraphNode) DetachObject(object Object) {
	n.graph.mu.Lock()
	defer n.graph.mu.Unlock()
	for i, o := range n.objects {
		if o == object {
			n.objects = append(n.objects[:i], n.objects[i+1:]...)
			return
		}
	}
}

// Objects returns the attached objects
func (n *GraphNode) Objects() []Object {
	n.graph.mu.Lock()
	defer n.graph.mu.Unlock()
	return append([]Object(nil), n.objects...)
}

func (n *GraphNode) Children() []*GraphNode {
	n.graph.mu.Lock()
	defer n.graph.mu.Unlock()
	return append([]*GraphNode(nil), n.children...)
}

// Line is one segment of a LineObject
type Line struct {
	From, To mgl64.Vec3
	Color    colorful.Color
}

// LineObject is the ManualObject of Graph; it records lines per section
type LineObject struct {
	mu       sync.Mutex
	name     string
	material string
	lines    []Line
	building bool
}

func (o *LineObject) Name() string { return o.name }

func (o *LineObject) Begin(material string) {
	o.mu.Lock()
	o.material = material
	o.building = true
	o.mu.Unlock()
}

func (o *LineObject) Line(from, to mgl64.Vec3, color colorful.Color) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.building {
		return
	}
	o.lines = append(o.lines, Line{From: from, To: to, Color: color})
}

func (o *LineObject) End() {
	o.mu.Lock()
	o.building = false
	o.mu.Unlock()
}

func (o *LineObject) Clear() {
	o.mu.Lock()
	o.lines = o.lines[:0]
	o.mu.Unlock()
}

func (o *LineObject) LineCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.lines)
}

// Material returns the material of the last section
func (o *LineObject) Material() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.material
}

// Lines returns a copy of the recorded lines
func (o *LineObject) Lines() []Line {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Line(nil), o.lines...)
}
