package newton

import (
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	epaMaxIterations = 32
	// epaTolerance stops the expansion once a new support point improves the
	// closest face by less than this
	epaTolerance       = 0.001
	epaMinFaceDistance = 0.0001
	// degenerateDepth is the penetration assumed when gjk ends on a single point
	degenerateDepth = 0.01
	snapThreshold   = 1e-8
)

type face struct {
	points   [3]mgl64.Vec3
	normal   mgl64.Vec3
	distance float64
}

type edge struct {
	a, b  mgl64.Vec3
	count int
}

// polytope is the hull of the Minkowski difference grown by epa
type polytope struct {
	faces   []face
	edges   []edge
	visible []int
}

// epa expands the gjk simplex to the face of a - b closest to the origin.
// The normal points from a towards b.
func epa(a, b convexSet, s *simplex) (normal mgl64.Vec3, depth float64) {
	if s.count < 4 {
		return degenerate(a, b, s)
	}

	p0, p1, p2, p3 := s.points[0], s.points[1], s.points[2], s.points[3]
	candidates := [4]face{
		newFace(p0, p1, p2, p3),
		newFace(p0, p2, p3, p1),
		newFace(p0, p3, p1, p2),
		newFace(p1, p3, p2, p0),
	}
	var poly polytope
	for _, f := range candidates {
		if f.distance >= epaMinFaceDistance {
			poly.faces = append(poly.faces, f)
		}
	}
	if len(poly.faces) < 3 {
		poly.faces = append(poly.faces[:0], candidates[:]...)
	}

	var closest face
	for range epaMaxIterations {
		if len(poly.faces) == 0 {
			break
		}
		i := poly.closest()
		closest = poly.faces[i]
		if closest.distance < epaMinFaceDistance {
			poly.faces[i] = poly.faces[len(poly.faces)-1]
			poly.faces = poly.faces[:len(poly.faces)-1]
			continue
		}

		p := minkowskiSupport(a, b, closest.normal)
		if p.Dot(closest.normal)-closest.distance < epaTolerance {
			return closest.normal, closest.distance
		}
		poly.expand(p, i)
	}

	if closest.normal == (mgl64.Vec3{}) {
		return degenerate(a, b, s)
	}
	return closest.normal, closest.distance
}

// degenerate estimates the contact when gjk could not build a tetrahedron
func degenerate(a, b convexSet, s *simplex) (mgl64.Vec3, float64) {
	if s.count >= 2 {
		p := s.points[0]
		if s.points[1].Len() < p.Len() {
			p = s.points[1]
		}
		if l := p.Len(); l > snapThreshold {
			return p.Mul(1 / l), l
		}
	}

	normal := b.center().Sub(a.center())
	if l := normal.Len(); l > snapThreshold {
		return normal.Mul(1 / l), degenerateDepth
	}
	return mgl64.Vec3{0, 1, 0}, degenerateDepth
}

// newFace builds the triangle p0 p1 p2 with its normal pointing away from
// opposite and from the origin
func newFace(p0, p1, p2, opposite mgl64.Vec3) face {
	f := face{points: [3]mgl64.Vec3{p0, p1, p2}}

	normal := p1.Sub(p0).Cross(p2.Sub(p0))
	l := normal.Len()
	if l < 1e-8 {
		f.normal = mgl64.Vec3{0, 1, 0}
		f.distance = epaMinFaceDistance
		return f
	}
	normal = normal.Mul(1 / l)
	if normal.Dot(opposite.Sub(p0)) > 0 {
		normal = normal.Mul(-1)
	}

	distance := p0.Dot(normal)
	if distance < 0 {
		normal = normal.Mul(-1)
		distance = -distance
	}
	f.normal = snapNormal(normal)
	f.distance = max(distance, epaMinFaceDistance)
	return f
}

func (p *polytope) closest() int {
	best := 0
	for i := 1; i < len(p.faces); i++ {
		if p.faces[i].distance < p.faces[best].distance {
			best = i
		}
	}
	return best
}

func (p *polytope) centroid() mgl64.Vec3 {
	var sum mgl64.Vec3
	seen := make(map[mgl64.Vec3]bool)
	for _, f := range p.faces {
		for _, v := range f.points {
			if !seen[v] {
				seen[v] = true
				sum = sum.Add(v)
			}
		}
	}
	if len(seen) == 0 {
		return sum
	}
	return sum.Mul(1 / float64(len(seen)))
}

// expand adds support to the polytope: the faces it sees are replaced by a
// fan from their boundary to support
func (p *polytope) expand(support mgl64.Vec3, closest int) {
	centroid := p.centroid()

	p.visible = p.visible[:0]
	for i, f := range p.faces {
		if support.Sub(f.points[0]).Dot(f.normal) > 0 {
			p.visible = append(p.visible, i)
		}
	}
	if len(p.visible) >= len(p.faces) {
		p.visible = append(p.visible[:0], closest)
	}

	p.edges = p.edges[:0]
	for _, i := range p.visible {
		f := p.faces[i]
		for k := range 3 {
			p.addEdge(f.points[k], f.points[(k+1)%3])
		}
	}

	// remove from the back so indices stay valid
	slices.Sort(p.visible)
	for k := len(p.visible) - 1; k >= 0; k-- {
		i := p.visible[k]
		p.faces[i] = p.faces[len(p.faces)-1]
		p.faces = p.faces[:len(p.faces)-1]
	}

	for _, e := range p.edges {
		if e.count == 1 {
			p.faces = append(p.faces, newFace(e.a, e.b, support, centroid))
		}
	}
	if len(p.faces) == 0 {
		p.faces = append(p.faces, face{
			points:   [3]mgl64.Vec3{support, support, support},
			normal:   mgl64.Vec3{0, 1, 0},
			distance: epaMinFaceDistance,
		})
	}
}

// addEdge counts an undirected edge; edges seen once bound the visible region
func (p *polytope) addEdge(a, b mgl64.Vec3) {
	if lessVec3(b, a) {
		a, b = b, a
	}
	for i := range p.edges {
		if p.edges[i].a == a && p.edges[i].b == b {
			p.edges[i].count++
			return
		}
	}
	p.edges = append(p.edges, edge{a: a, b: b, count: 1})
}

func lessVec3(a, b mgl64.Vec3) bool {
	for i := range 3 {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// snapNormal zeroes the components too small to matter, so axis aligned
// contacts do not jitter sideways
func snapNormal(n mgl64.Vec3) mgl64.Vec3 {
	for i := range 3 {
		if math.Abs(n[i]) < snapThreshold {
			n[i] = 0
		}
	}
	if l := n.Len(); l > 1e-8 {
		return n.Mul(1 / l)
	}
	return mgl64.Vec3{0, 1, 0}
}

// convexManifold collects the contact points of two overlapping convex sets
// along normal, from a towards b. The side with fewer points in the overlap
// slab is the incident feature.
func convexManifold(a, b convexSet, normal mgl64.Vec3, depth float64) []ContactPoint {
	topA := math.Inf(-1)
	bottomB := math.Inf(1)
	for _, f := range a {
		for _, p := range f.samples() {
			topA = max(topA, p.Dot(normal)+f.radius)
		}
	}
	for _, f := range b {
		for _, p := range f.samples() {
			bottomB = min(bottomB, p.Dot(normal)-f.radius)
		}
	}

	var fromA, fromB []ContactPoint
	for _, f := range b {
		for _, p := range f.samples() {
			if d := topA - (p.Dot(normal) - f.radius); d > 0 {
				fromB = append(fromB, ContactPoint{Position: p.Sub(normal.Mul(f.radius)), Penetration: min(d, depth)})
			}
		}
	}
	for _, f := range a {
		for _, p := range f.samples() {
			if d := p.Dot(normal) + f.radius - bottomB; d > 0 {
				fromA = append(fromA, ContactPoint{Position: p.Add(normal.Mul(f.radius)), Penetration: min(d, depth)})
			}
		}
	}

	points := fromB
	if len(fromA) > 0 && (len(fromB) == 0 || len(fromA) < len(fromB)) {
		points = fromA
	}
	if len(points) == 0 {
		mid := a.support(normal).Sub(normal.Mul(depth / 2))
		return []ContactPoint{{Position: mid, Penetration: depth}}
	}
	if len(points) > 4 {
		points = reduceManifold(points, normal)
	}
	return points
}

// reduceManifold keeps the extreme points of the manifold on the contact
// plane
func reduceManifold(points []ContactPoint, normal mgl64.Vec3) []ContactPoint {
	t1 := mgl64.Vec3{1, 0, 0}
	if math.Abs(normal.X()) > 0.9 {
		t1 = mgl64.Vec3{0, 1, 0}
	}
	t1 = t1.Sub(normal.Mul(t1.Dot(normal))).Normalize()
	t2 := normal.Cross(t1).Normalize()

	extremes := [4]int{}
	values := [4]float64{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	for i, p := range points {
		x, y := p.Position.Dot(t1), p.Position.Dot(t2)
		if x < values[0] {
			values[0], extremes[0] = x, i
		}
		if x > values[1] {
			values[1], extremes[1] = x, i
		}
		if y < values[2] {
			values[2], extremes[2] = y, i
		}
		if y > values[3] {
			values[3], extremes[3] = y, i
		}
	}

	out := make([]ContactPoint, 0, 4)
	kept := make(map[int]bool, 4)
	for _, i := range extremes {
		if !kept[i] {
			kept[i] = true
			out = append(out, points[i])
		}
	}
	return out
}

// versusConvex runs gjk then epa on two convex sets
func versusConvex(a, b convexSet) ([]ContactPoint, mgl64.Vec3, bool) {
	var s simplex
	if !gjk(a, b, &s) {
		return nil, mgl64.Vec3{}, false
	}
	normal, depth := epa(a, b, &s)
	return convexManifold(a, b, normal, depth), normal, true
}
