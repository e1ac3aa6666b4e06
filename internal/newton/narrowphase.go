package newton

import (
	"math"

	"github.com/akmonengine/ogrenewt/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// feature is a swept sphere: a segment (a == b for a point) with a radius.
// Polyhedral shapes are reduced to their vertices with a zero radius.
type feature struct {
	a, b   mgl64.Vec3
	radius float64
}

func (f feature) samples() []mgl64.Vec3 {
	if f.a == f.b {
		return []mgl64.Vec3{f.a}
	}
	return []mgl64.Vec3{f.a, f.b, f.a.Add(f.b).Mul(0.5)}
}

// features returns the world space features of shape at transform
func features(shape actor.ShapeInterface, t actor.Transform) []feature {
	switch s := shape.(type) {
	case *actor.Sphere:
		return []feature{{a: t.Position, b: t.Position, radius: s.Radius}}
	case *actor.Capsule:
		h := s.Height / 2
		return []feature{{a: t.Apply(mgl64.Vec3{0, -h, 0}), b: t.Apply(mgl64.Vec3{0, h, 0}), radius: s.Radius}}
	case *actor.Box:
		local := actor.AABB{Min: s.HalfExtents.Mul(-1), Max: s.HalfExtents}
		var out []feature
		for _, c := range local.Corners() {
			p := t.Apply(c)
			out = append(out, feature{a: p, b: p})
		}
		return out
	case *actor.ConvexHull:
		out := make([]feature, 0, len(s.Points))
		for _, c := range s.Points {
			p := t.Apply(c)
			out = append(out, feature{a: p, b: p})
		}
		return out
	case *actor.Compound:
		var out []feature
		for _, child := range s.Children {
			out = append(out, features(child.Shape, t.Mul(child.Offset))...)
		}
		return out
	case *actor.Plane:
		return nil
	}

	// cylinders, meshes and height fields: polygon vertices
	var out []feature
	seen := make(map[mgl64.Vec3]bool)
	shape.ForEachPolygon(func(face []mgl64.Vec3) {
		for _, v := range face {
			if seen[v] {
				continue
			}
			seen[v] = true
			p := t.Apply(v)
			out = append(out, feature{a: p, b: p})
		}
	})
	return out
}

// roundShape returns the core segment and radius of spheres and capsules
func roundShape(shape actor.ShapeInterface, t actor.Transform) (feature, bool) {
	switch shape.(type) {
	case *actor.Sphere, *actor.Capsule:
		return features(shape, t)[0], true
	}
	return feature{}, false
}

// polyhedral reports the convex shapes without a dedicated test
func polyhedral(shape actor.ShapeInterface) bool {
	switch shape.(type) {
	case *actor.ConvexHull, *actor.Cylinder:
		return true
	}
	return false
}

func isConvex(shape actor.ShapeInterface) bool {
	c, ok := shape.(actor.Convex)
	return ok && c.IsConvex()
}

// collide runs the narrow phase on a broad phase pair. The returned contact
// normal points from a to b; nil means no contact.
func collide(a, b *Body) *ContactJoint {
	sa, sb := a.collision.Shape(), b.collision.Shape()
	if sa == nil || sb == nil {
		return nil
	}
	ta, tb := a.transform, b.transform

	points, normal, ok := manifold(sa, ta, sb, tb)
	if !ok {
		return nil
	}
	return &ContactJoint{BodyA: a, BodyB: b, Points: points, Normal: normal}
}

func manifold(sa actor.ShapeInterface, ta actor.Transform, sb actor.ShapeInterface, tb actor.Transform) ([]ContactPoint, mgl64.Vec3, bool) {
	flip := func(points []ContactPoint, normal mgl64.Vec3, ok bool) ([]ContactPoint, mgl64.Vec3, bool) {
		return points, normal.Mul(-1), ok
	}

	if plane, ok := sa.(*actor.Plane); ok {
		return versusPlane(features(sb, tb), plane, ta)
	}
	if plane, ok := sb.(*actor.Plane); ok {
		return flip(versusPlane(features(sa, ta), plane, tb))
	}

	if polyhedral(sa) && isConvex(sb) || polyhedral(sb) && isConvex(sa) {
		return versusConvex(features(sa, ta), features(sb, tb))
	}

	ra, roundA := roundShape(sa, ta)
	rb, roundB := roundShape(sb, tb)
	if roundA && roundB {
		return roundVersusRound(ra, rb)
	}

	if box, ok := sb.(*actor.Box); ok {
		return flip(versusBox(features(sa, ta), box, tb))
	}
	if box, ok := sa.(*actor.Box); ok {
		return versusBox(features(sb, tb), box, ta)
	}
	if roundA {
		return versusRound(features(sb, tb), ra)
	}
	if roundB {
		return flip(versusRound(features(sa, ta), rb))
	}

	return versusAABB(sa.ComputeAABB(ta), sb.ComputeAABB(tb))
}

// versusPlane tests the features of B against the plane of A. The normal is
// the plane normal, so it points from A to B.
func versusPlane(fs []feature, plane *actor.Plane, t actor.Transform) ([]ContactPoint, mgl64.Vec3, bool) {
	normal := t.Rotation.Rotate(plane.Normal)
	origin := t.Apply(plane.Normal.Mul(-plane.Distance))
	d := -normal.Dot(origin)

	var points []ContactPoint
	for _, f := range fs {
		for _, p := range f.samples() {
			dist := normal.Dot(p) + d - f.radius
			if dist < 0 {
				points = append(points, ContactPoint{
					Position:    p.Sub(normal.Mul(f.radius)),
					Penetration: -dist,
				})
			}
		}
	}
	return points, normal, len(points) > 0
}

// versusBox tests the features of B against the box of A. The normal is the
// outward face normal of A closest to the deepest point.
func versusBox(fs []feature, box *actor.Box, t actor.Transform) ([]ContactPoint, mgl64.Vec3, bool) {
	h := box.HalfExtents

	type hit struct {
		point       ContactPoint
		localNormal mgl64.Vec3
	}
	var hits []hit
	deepest := -1

	for _, f := range fs {
		for _, p := range f.samples() {
			q := t.ApplyInverse(p)
			c := mgl64.Vec3{
				mgl64.Clamp(q.X(), -h.X(), h.X()),
				mgl64.Clamp(q.Y(), -h.Y(), h.Y()),
				mgl64.Clamp(q.Z(), -h.Z(), h.Z()),
			}

			var n mgl64.Vec3
			var penetration float64
			if c == q {
				// inside: leave through the closest face
				penetration = math.MaxFloat64
				for i := 0; i < 3; i++ {
					if depth := h[i] - math.Abs(q[i]); depth < penetration {
						penetration = depth
						n = mgl64.Vec3{}
						n[i] = math.Copysign(1, q[i])
					}
				}
				penetration += f.radius
			} else {
				diff := q.Sub(c)
				dist := diff.Len()
				if dist >= f.radius {
					continue
				}
				n = diff.Mul(1 / dist)
				penetration = f.radius - dist
			}

			hits = append(hits, hit{
				point:       ContactPoint{Position: t.Apply(c), Penetration: penetration},
				localNormal: n,
			})
			if deepest < 0 || penetration > hits[deepest].point.Penetration {
				deepest = len(hits) - 1
			}
		}
	}
	if deepest < 0 {
		return nil, mgl64.Vec3{}, false
	}

	ref := hits[deepest].localNormal
	var points []ContactPoint
	for _, h := range hits {
		if h.localNormal.Dot(ref) > 0.7 {
			points = append(points, h.point)
		}
	}
	return points, t.Rotation.Rotate(ref), true
}

// versusRound tests the features of B against the swept sphere of A
func versusRound(fs []feature, round feature) ([]ContactPoint, mgl64.Vec3, bool) {
	var points []ContactPoint
	var normal mgl64.Vec3
	deepest := -1.0

	for _, f := range fs {
		for _, p := range f.samples() {
			c := closestOnSegment(round.a, round.b, p)
			diff := p.Sub(c)
			dist := diff.Len()
			limit := round.radius + f.radius
			if dist >= limit {
				continue
			}
			n := mgl64.Vec3{0, 1, 0}
			if dist > 1e-12 {
				n = diff.Mul(1 / dist)
			}
			penetration := limit - dist
			points = append(points, ContactPoint{Position: c.Add(n.Mul(round.radius)), Penetration: penetration})
			if penetration > deepest {
				deepest = penetration
				normal = n
			}
		}
	}
	return points, normal, len(points) > 0
}

func roundVersusRound(a, b feature) ([]ContactPoint, mgl64.Vec3, bool) {
	pa, pb := closestSegmentSegment(a.a, a.b, b.a, b.b)
	diff := pb.Sub(pa)
	dist := diff.Len()
	limit := a.radius + b.radius
	if dist >= limit {
		return nil, mgl64.Vec3{}, false
	}
	normal := mgl64.Vec3{0, 1, 0}
	if dist > 1e-12 {
		normal = diff.Mul(1 / dist)
	}
	return []ContactPoint{{
		Position:    pa.Add(normal.Mul(a.radius)),
		Penetration: limit - dist,
	}}, normal, true
}

// versusAABB is the fallback for pairs without a dedicated test: the boxes
// are pushed apart along their axis of least overlap
func versusAABB(a, b actor.AABB) ([]ContactPoint, mgl64.Vec3, bool) {
	overlap := mgl64.Vec3{}
	for i := 0; i < 3; i++ {
		overlap[i] = math.Min(a.Max[i], b.Max[i]) - math.Max(a.Min[i], b.Min[i])
		if overlap[i] <= 0 {
			return nil, mgl64.Vec3{}, false
		}
	}

	axis := 0
	for i := 1; i < 3; i++ {
		if overlap[i] < overlap[axis] {
			axis = i
		}
	}
	normal := mgl64.Vec3{}
	normal[axis] = 1
	if b.Center()[axis] < a.Center()[axis] {
		normal[axis] = -1
	}

	region := actor.AABB{
		Min: mgl64.Vec3{math.Max(a.Min[0], b.Min[0]), math.Max(a.Min[1], b.Min[1]), math.Max(a.Min[2], b.Min[2])},
		Max: mgl64.Vec3{math.Min(a.Max[0], b.Max[0]), math.Min(a.Max[1], b.Max[1]), math.Min(a.Max[2], b.Max[2])},
	}
	return []ContactPoint{{Position: region.Center(), Penetration: overlap[axis]}}, normal, true
}

func closestOnSegment(a, b, p mgl64.Vec3) mgl64.Vec3 {
	ab := b.Sub(a)
	lenSq := ab.Dot(ab)
	if lenSq < 1e-18 {
		return a
	}
	t := mgl64.Clamp(p.Sub(a).Dot(ab)/lenSq, 0, 1)
	return a.Add(ab.Mul(t))
}

// closestSegmentSegment returns the closest points of segments p1q1 and p2q2
func closestSegmentSegment(p1, q1, p2, q2 mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	const eps = 1e-12
	d1 := q1.Sub(p1)
	d2 := q2.Sub(p2)
	r := p1.Sub(p2)
	a := d1.Dot(d1)
	e := d2.Dot(d2)
	f := d2.Dot(r)

	var s, t float64
	switch {
	case a <= eps && e <= eps:
		return p1, p2
	case a <= eps:
		t = mgl64.Clamp(f/e, 0, 1)
	default:
		c := d1.Dot(r)
		if e <= eps {
			s = mgl64.Clamp(-c/a, 0, 1)
		} else {
			b := d1.Dot(d2)
			denom := a*e - b*b
			if denom != 0 {
				s = mgl64.Clamp((b*f-c*e)/denom, 0, 1)
			}
			t = (b*s + f) / e
			if t < 0 {
				t = 0
				s = mgl64.Clamp(-c/a, 0, 1)
			} else if t > 1 {
				t = 1
				s = mgl64.Clamp((b-c)/a, 0, 1)
			}
		}
	}
	return p1.Add(d1.Mul(s)), p2.Add(d2.Mul(t))
}
