// Package debugger draws wireframes of the bodies and joints of a world into
// a scene graph
package debugger

import (
	"fmt"
	"sync"

	"github.com/akmonengine/ogrenewt"
	"github.com/akmonengine/ogrenewt/actor"
	"github.com/akmonengine/ogrenewt/scene"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"
)

const (
	wireframeMaterial = "ogrenewt/debug"
	axisLength        = 0.5
	markerSize        = 0.1
)

var (
	fallbackColor = colorful.Color{R: 0, G: 1, B: 0}
	contactColor  = colorful.Color{R: 1, G: 0, B: 0}
	rayColor      = colorful.Color{R: 1, G: 1, B: 0}
	hitColor      = colorful.Color{R: 1, G: 0.5, B: 0}
	discardColor  = colorful.Color{R: 0.5, G: 0.5, B: 0.5}
	axisColors    = [3]colorful.Color{{R: 1}, {G: 1}, {B: 1}}
)

// Stats counts the work done by the debugger since it was created
type Stats struct {
	Built        int
	Repositioned int
	Pruned       int
}

// Joint is the view of a joint the debugger draws
type Joint interface {
	Handle() ogrenewt.Handle
	IsDestroyed() bool
	GlobalFrames() (global0, global1 actor.Transform)
}

// Ray is the view of a ray query the debugger draws
type Ray interface {
	Start() mgl64.Vec3
	End() mgl64.Vec3
	Discarded() []ogrenewt.PhysicsBody
}

type hitPoints interface {
	HitPoints() []mgl64.Vec3
}

// wireframe is one built overlay. Body overlays are keyed by the identity and
// revision of the geometry they were built from.
type wireframe struct {
	node        scene.Node
	object      scene.ManualObject
	collisionID uint64
	revision    uint64
	color       colorful.Color
}

type Debugger struct {
	world   *ogrenewt.World
	manager scene.Manager

	mu           sync.Mutex
	root         scene.Node
	defaultColor colorful.Color
	colors       map[string]colorful.Color
	showContacts bool

	bodies   map[ogrenewt.Handle]*wireframe
	joints   map[ogrenewt.Handle]*wireframe
	contacts *wireframe
	rays     *wireframe
	stats    Stats
}

// New creates a debugger drawing the bodies of w into manager. Colors come
// from the debug section of the world config.
func New(w *ogrenewt.World, manager scene.Manager) *Debugger {
	cfg := w.Config().Debug
	d := &Debugger{
		world:        w,
		manager:      manager,
		defaultColor: fallbackColor,
		colors:       make(map[string]colorful.Color),
		showContacts: cfg.ShowContacts,
		bodies:       make(map[ogrenewt.Handle]*wireframe),
		joints:       make(map[ogrenewt.Handle]*wireframe),
	}

	if cfg.DefaultColor != "" {
		if c, err := colorful.Hex(cfg.DefaultColor); err != nil {
			w.Logger().Warnf("debugger: invalid default color %q: %v", cfg.DefaultColor, err)
		} else {
			d.defaultColor = c
		}
	}
	for group, hex := range cfg.MaterialColors {
		if err := d.SetMaterialColorHex(group, hex); err != nil {
			w.Logger().Warnf("debugger: %v", err)
		}
	}
	return d
}

func (d *Debugger) SetMaterialColor(group string, color colorful.Color) {
	d.mu.Lock()
	d.colors[group] = color
	d.mu.Unlock()
}

// SetMaterialColorHex parses a "#rrggbb" color for group
func (d *Debugger) SetMaterialColorHex(group, hex string) error {
	c, err := colorful.Hex(hex)
	if err != nil {
		return fmt.Errorf("invalid color %q for material group %q: %w", hex, group, err)
	}
	d.SetMaterialColor(group, c)
	return nil
}

func (d *Debugger) SetDefaultColor(color colorful.Color) {
	d.mu.Lock()
	d.defaultColor = color
	d.mu.Unlock()
}

func (d *Debugger) SetShowContacts(show bool) {
	d.mu.Lock()
	d.showContacts = show
	d.mu.Unlock()
}

// ColorOf returns the color a body is drawn with
func (d *Debugger) ColorOf(body ogrenewt.PhysicsBody) colorful.Color {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.colorOf(body)
}

func (d *Debugger) colorOf(body ogrenewt.PhysicsBody) colorful.Color {
	if c, ok := d.colors[body.Core().MaterialGroup()]; ok {
		return c
	}
	return d.defaultColor
}

func (d *Debugger) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// ShowDebugInformation refreshes the overlays. Bodies whose geometry did not
// change are only moved; overlays of bodies that are gone, hidden or
// reshaped are destroyed.
func (d *Debugger) ShowDebugInformation() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.root == nil {
		d.root = d.manager.RootNode().CreateChild(newName("root"), false)
	}

	live := make(map[ogrenewt.Handle]bool)
	var shown []ogrenewt.PhysicsBody
	for _, body := range d.world.Bodies() {
		core := body.Core()
		collision := core.Collision()
		if !core.IsDebug() || collision == nil {
			continue
		}
		live[body.Handle()] = true
		shown = append(shown, body)
		d.showBody(body, collision)
	}
	for handle, wf := range d.bodies {
		if !live[handle] {
			d.prune(wf)
			delete(d.bodies, handle)
		}
	}

	d.showJoints()
	if d.showContacts {
		d.drawContacts(shown)
	} else if d.contacts != nil {
		d.prune(d.contacts)
		d.contacts = nil
	}
}

func (d *Debugger) showBody(body ogrenewt.PhysicsBody, collision *actor.Collision) {
	color := d.colorOf(body)
	wf, ok := d.bodies[body.Handle()]
	if ok && (wf.collisionID != collision.ID() || wf.revision != collision.Revision() || wf.color != color) {
		d.prune(wf)
		ok = false
	}
	if !ok {
		wf = d.build(collision, color)
		d.bodies[body.Handle()] = wf
	} else {
		d.stats.Repositioned++
	}

	position, orientation := body.Core().PositionOrientation()
	wf.node.SetPosition(position)
	wf.node.SetOrientation(orientation)
}

func (d *Debugger) build(collision *actor.Collision, color colorful.Color) *wireframe {
	wf := d.newWireframe()
	wf.collisionID = collision.ID()
	wf.revision = collision.Revision()
	wf.color = color

	wf.object.Begin(wireframeMaterial)
	collision.ForEachPolygon(func(face []mgl64.Vec3) {
		for i := range face {
			wf.object.Line(face[i], face[(i+1)%len(face)], color)
		}
	})
	wf.object.End()

	d.stats.Built++
	return wf
}

func (d *Debugger) newWireframe() *wireframe {
	name := newName("wireframe")
	node := d.root.CreateChild(name, false)
	object := d.manager.CreateManualObject(name)
	node.AttachObject(object)
	return &wireframe{node: node, object: object}
}

// prune destroys the resources of wf; callers drop every reference to it
func (d *Debugger) prune(wf *wireframe) {
	wf.node.DetachObject(wf.object)
	d.manager.DestroyManualObject(wf.object)
	d.manager.DestroyNode(wf.node)
	d.stats.Pruned++
}

func (d *Debugger) showJoints() {
	live := make(map[ogrenewt.Handle]bool)
	for _, v := range d.world.Joints() {
		j, ok := v.(Joint)
		if !ok || j.IsDestroyed() {
			continue
		}
		live[j.Handle()] = true

		wf, ok := d.joints[j.Handle()]
		if !ok {
			wf = d.newWireframe()
			d.joints[j.Handle()] = wf
			d.stats.Built++
		}
		global0, global1 := j.GlobalFrames()
		wf.object.Clear()
		wf.object.Begin(wireframeMaterial)
		drawAxes(wf.object, global0)
		drawAxes(wf.object, global1)
		wf.object.End()
	}
	for handle, wf := range d.joints {
		if !live[handle] {
			d.prune(wf)
			delete(d.joints, handle)
		}
	}
}

func drawAxes(object scene.ManualObject, frame actor.Transform) {
	for i, axis := range [3]mgl64.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}} {
		tip := frame.Apply(axis.Mul(axisLength))
		object.Line(frame.Position, tip, axisColors[i])
	}
}

func (d *Debugger) drawContacts(bodies []ogrenewt.PhysicsBody) {
	if d.contacts == nil {
		d.contacts = d.newWireframe()
	}
	object := d.contacts.object
	object.Clear()
	object.Begin(wireframeMaterial)
	for _, body := range bodies {
		for _, contact := range body.Core().Contacts() {
			for _, p := range contact.Points {
				object.Line(p.Position, p.Position.Add(contact.Normal.Mul(axisLength)), contactColor)
			}
		}
	}
	object.End()
}

// ShowRay draws a ray query: the segment, its hits when the query keeps them
// and the bodies its pre-filter discarded
func (d *Debugger) ShowRay(ray Ray) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.root == nil {
		d.root = d.manager.RootNode().CreateChild(newName("root"), false)
	}
	if d.rays == nil {
		d.rays = d.newWireframe()
	}

	object := d.rays.object
	object.Begin(wireframeMaterial)
	object.Line(ray.Start(), ray.End(), rayColor)
	if hits, ok := ray.(hitPoints); ok {
		for _, p := range hits.HitPoints() {
			drawMarker(object, p, hitColor)
		}
	}
	for _, body := range ray.Discarded() {
		position, _ := body.Core().PositionOrientation()
		drawMarker(object, position, discardColor)
	}
	object.End()
}

// HideRays removes every ray drawn by ShowRay
func (d *Debugger) HideRays() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rays != nil {
		d.prune(d.rays)
		d.rays = nil
	}
}

func drawMarker(object scene.ManualObject, p mgl64.Vec3, color colorful.Color) {
	for _, axis := range [3]mgl64.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}} {
		offset := axis.Mul(markerSize)
		object.Line(p.Sub(offset), p.Add(offset), color)
	}
}

// HideDebugInformation destroys every overlay. The next
// ShowDebugInformation builds them again.
func (d *Debugger) HideDebugInformation() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for handle, wf := range d.bodies {
		d.prune(wf)
		delete(d.bodies, handle)
	}
	for handle, wf := range d.joints {
		d.prune(wf)
		delete(d.joints, handle)
	}
	if d.contacts != nil {
		d.prune(d.contacts)
		d.contacts = nil
	}
	if d.rays != nil {
		d.prune(d.rays)
		d.rays = nil
	}
	if d.root != nil {
		d.manager.DestroyNode(d.root)
		d.root = nil
	}
}

func newName(kind string) string {
	return "ogrenewt-debug-" + kind + "-" + uuid.NewString()
}
