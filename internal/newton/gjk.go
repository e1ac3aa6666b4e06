package newton

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// convexSet is a convex shape reduced to its world space features. Its
// support mapping is all gjk and epa need.
type convexSet []feature

// support returns the point of the set furthest along direction
func (c convexSet) support(direction mgl64.Vec3) mgl64.Vec3 {
	n := mgl64.Vec3{}
	if l := direction.Len(); l > 1e-12 {
		n = direction.Mul(1 / l)
	}

	var best mgl64.Vec3
	bestDot := math.Inf(-1)
	for _, f := range c {
		for _, p := range [2]mgl64.Vec3{f.a, f.b} {
			q := p.Add(n.Mul(f.radius))
			if d := q.Dot(direction); d > bestDot {
				best, bestDot = q, d
			}
		}
	}
	return best
}

func (c convexSet) center() mgl64.Vec3 {
	var sum mgl64.Vec3
	for _, f := range c {
		sum = sum.Add(f.a).Add(f.b)
	}
	if len(c) == 0 {
		return sum
	}
	return sum.Mul(0.5 / float64(len(c)))
}

// minkowskiSupport returns the support point of the Minkowski difference a - b
func minkowskiSupport(a, b convexSet, direction mgl64.Vec3) mgl64.Vec3 {
	return a.support(direction).Sub(b.support(direction.Mul(-1)))
}

// simplex holds 1 to 4 points of the Minkowski difference, most recent last
type simplex struct {
	points [4]mgl64.Vec3
	count  int
}

const gjkMaxIterations = 32

// gjk reports whether the convex sets overlap. On overlap s is the
// tetrahedron enclosing the origin that epa starts from.
func gjk(a, b convexSet, s *simplex) bool {
	direction := b.center().Sub(a.center())
	if direction.LenSqr() < 1e-8 {
		direction = mgl64.Vec3{1, 0, 0}
	}

	s.points[0] = minkowskiSupport(a, b, direction)
	s.count = 1

	direction = s.points[0].Mul(-1)
	if direction.LenSqr() < 1e-16 {
		return true
	}

	for range gjkMaxIterations {
		p := minkowskiSupport(a, b, direction)
		// the origin lies beyond the furthest point: separated
		if p.Dot(direction) <= 0 {
			return false
		}

		s.points[s.count] = p
		s.count++
		if s.containsOrigin(&direction) {
			return true
		}
	}
	return false
}

// containsOrigin reduces the simplex to the feature closest to the origin and
// points direction at the origin from it
func (s *simplex) containsOrigin(direction *mgl64.Vec3) bool {
	switch s.count {
	case 2:
		return s.line(direction)
	case 3:
		return s.triangle(direction)
	case 4:
		return s.tetrahedron(direction)
	}
	return false
}

func (s *simplex) line(direction *mgl64.Vec3) bool {
	a := s.points[1]
	b := s.points[0]
	ab := b.Sub(a)
	ao := a.Mul(-1)

	if ab.LenSqr() < 1e-8 {
		if ao.LenSqr() < 1e-8 {
			return true
		}
		s.points[0] = a
		s.count = 1
		*direction = ao
		return false
	}

	if ab.Dot(ao) <= 0 {
		s.points[0] = a
		s.count = 1
		*direction = ao
		return false
	}

	perp := ab.Cross(ao).Cross(ab)
	if perp.LenSqr() < 1e-8 {
		// origin on the segment
		return true
	}
	*direction = perp
	return false
}

func (s *simplex) triangle(direction *mgl64.Vec3) bool {
	a := s.points[2]
	b := s.points[1]
	c := s.points[0]

	ab := b.Sub(a)
	ac := c.Sub(a)
	ao := a.Mul(-1)
	abc := ab.Cross(ac)

	if abc.LenSqr() < 1e-10 {
		// collinear, drop the oldest point
		s.points[0], s.points[1] = b, a
		s.count = 2
		return s.line(direction)
	}

	if ab.Cross(abc).Dot(ao) > 0 {
		s.points[0], s.points[1] = b, a
		s.count = 2
		*direction = ab.Cross(ao).Cross(ab)
		return false
	}
	if abc.Cross(ac).Dot(ao) > 0 {
		s.points[0], s.points[1] = c, a
		s.count = 2
		*direction = ac.Cross(ao).Cross(ac)
		return false
	}

	if abc.Dot(ao) > 0 {
		*direction = abc
	} else {
		s.points[0], s.points[1], s.points[2] = a, c, b
		*direction = abc.Mul(-1)
	}
	return false
}

func (s *simplex) tetrahedron(direction *mgl64.Vec3) bool {
	a := s.points[3]
	b := s.points[2]
	c := s.points[1]
	d := s.points[0]

	ab := b.Sub(a)
	ac := c.Sub(a)
	ad := d.Sub(a)
	ao := a.Mul(-1)

	// face normals point away from the opposite vertex
	abc := ab.Cross(ac)
	if abc.Dot(ad) > 0 {
		abc = abc.Mul(-1)
	}
	acd := ac.Cross(ad)
	if acd.Dot(ab) > 0 {
		acd = acd.Mul(-1)
	}
	adb := ad.Cross(ab)
	if adb.Dot(ac) > 0 {
		adb = adb.Mul(-1)
	}

	reduce := func(p0, p1, p2 mgl64.Vec3) bool {
		s.points[0], s.points[1], s.points[2] = p0, p1, p2
		s.count = 3
		return s.triangle(direction)
	}

	switch {
	case abc.LenSqr() < 1e-10 || acd.LenSqr() < 1e-10 || adb.LenSqr() < 1e-10:
		return reduce(c, b, a)
	case abc.Dot(ao) > 0:
		return reduce(c, b, a)
	case acd.Dot(ao) > 0:
		return reduce(d, c, a)
	case adb.Dot(ao) > 0:
		return reduce(b, d, a)
	}
	return true
}
