// Package scene declares the scene-graph collaborators the physics adapter
// writes into, and provides Graph, a headless in-memory implementation.
package scene

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/lucasb-eyer/go-colorful"
)

// Derived is the world space pose of a node
type Derived struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
	Scale       mgl64.Vec3
}

// Identity is the derived pose of a root node
func Identity() Derived {
	return Derived{Orientation: mgl64.QuatIdent(), Scale: mgl64.Vec3{1, 1, 1}}
}

// Object is anything that can be attached to a node
type Object interface {
	Name() string
}

// Node is a scene-graph node. Static nodes cache their derived pose and only
// recompute it when asked to.
type Node interface {
	Name() string
	// Parent returns nil for the root node
	Parent() Node
	IsStatic() bool

	Position() mgl64.Vec3
	Orientation() mgl64.Quat
	SetPosition(position mgl64.Vec3)
	SetOrientation(orientation mgl64.Quat)

	// Derived returns the world pose. With update set the pose is recomputed
	// from the hierarchy, otherwise the cached value is returned.
	Derived(update bool) Derived

	CreateChild(name string, static bool) Node
	AttachObject(object Object)
	DetachObject(object Object)
}

// ManualObject is a line-list geometry sink used for debug overlays
type ManualObject interface {
	Object
	// Begin starts a new line list section using the named material
	Begin(material string)
	Line(from, to mgl64.Vec3, color colorful.Color)
	End()
	Clear()
	LineCount() int
}

// Manager owns nodes and manual objects
type Manager interface {
	RootNode() Node
	CreateManualObject(name string) ManualObject
	DestroyManualObject(object ManualObject)
	DestroyNode(node Node)
}
