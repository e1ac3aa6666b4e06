package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const hullTolerance = 1e-9

type hullFace struct {
	indices [3]int
	normal  mgl64.Vec3
	offset  float64 // normal · p == offset on the face plane
}

// ConvexHull is the convex envelope of a point cloud. Faces are triangles
// built once by NewConvexHull.
type ConvexHull struct {
	Points []mgl64.Vec3
	faces  []hullFace
}

// NewConvexHull builds the hull faces of points. The cloud should hold at
// least 4 non-coplanar points; fewer, or a flat cloud, produce a hull with
// no faces.
func NewConvexHull(points []mgl64.Vec3) *ConvexHull {
	h := &ConvexHull{Points: append([]mgl64.Vec3(nil), points...)}
	h.build()
	return h
}

// build keeps every triangle whose plane leaves all points on one side.
// Cubic in the point count, which is fine for collision hulls.
func (h *ConvexHull) build() {
	h.faces = h.faces[:0]
	if !spansVolume(h.Points) {
		return
	}
	n := len(h.Points)
	centroid := mgl64.Vec3{}
	for _, p := range h.Points {
		centroid = centroid.Add(p)
	}
	if n > 0 {
		centroid = centroid.Mul(1.0 / float64(n))
	}

	seen := make(map[[3]int]bool)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				a, b, c := h.Points[i], h.Points[j], h.Points[k]
				normal := b.Sub(a).Cross(c.Sub(a))
				if normal.Len() < hullTolerance {
					continue
				}
				normal = normal.Normalize()
				idx := [3]int{i, j, k}
				if normal.Dot(centroid.Sub(a)) > 0 {
					normal = normal.Mul(-1)
					idx = [3]int{i, k, j}
				}
				offset := normal.Dot(a)

				onPlane := false
				outside := false
				for m, p := range h.Points {
					d := normal.Dot(p) - offset
					if d > hullTolerance {
						outside = true
						break
					}
					if m != i && m != j && m != k && d > -hullTolerance {
						onPlane = true
					}
				}
				if outside {
					continue
				}
				// coplanar clusters produce several triangulations of the
				// same face; keep the ones whose vertices are not shared
				// with an already accepted coplanar triangle covering them
				if onPlane && h.coveredBy(idx, normal) {
					continue
				}
				if !seen[idx] {
					seen[idx] = true
					h.faces = append(h.faces, hullFace{indices: idx, normal: normal, offset: offset})
				}
			}
		}
	}
}

// spansVolume reports whether four of the points form a tetrahedron with a
// non-zero volume: a first point, the one furthest from it, the one furthest
// from that line, then the one furthest from that plane.
func spansVolume(points []mgl64.Vec3) bool {
	if len(points) < 4 {
		return false
	}
	a := points[0]

	b, best := a, 0.0
	for _, p := range points {
		if d := p.Sub(a).LenSqr(); d > best {
			b, best = p, d
		}
	}
	if best < hullTolerance {
		return false
	}

	var normal mgl64.Vec3
	best = 0
	for _, p := range points {
		if n := b.Sub(a).Cross(p.Sub(a)); n.LenSqr() > best {
			normal, best = n, n.LenSqr()
		}
	}
	if best < hullTolerance {
		return false
	}

	normal = normal.Normalize()
	for _, p := range points {
		if math.Abs(normal.Dot(p.Sub(a))) > hullTolerance {
			return true
		}
	}
	return false
}

// coveredBy reports whether an already accepted coplanar triangle overlaps the
// candidate, which happens when 4+ points share a face plane.
func (h *ConvexHull) coveredBy(idx [3]int, normal mgl64.Vec3) bool {
	centroid := h.Points[idx[0]].Add(h.Points[idx[1]]).Add(h.Points[idx[2]]).Mul(1.0 / 3.0)
	for _, f := range h.faces {
		if f.normal.Dot(normal) < 1-1e-6 {
			continue
		}
		if pointInTriangle(centroid, h.Points[f.indices[0]], h.Points[f.indices[1]], h.Points[f.indices[2]], normal) {
			return true
		}
		other := h.Points[f.indices[0]].Add(h.Points[f.indices[1]]).Add(h.Points[f.indices[2]]).Mul(1.0 / 3.0)
		if pointInTriangle(other, h.Points[idx[0]], h.Points[idx[1]], h.Points[idx[2]], normal) {
			return true
		}
	}
	return false
}

func pointInTriangle(p, a, b, c, normal mgl64.Vec3) bool {
	return b.Sub(a).Cross(p.Sub(a)).Dot(normal) >= -hullTolerance &&
		c.Sub(b).Cross(p.Sub(b)).Dot(normal) >= -hullTolerance &&
		a.Sub(c).Cross(p.Sub(c)).Dot(normal) >= -hullTolerance
}

func (h *ConvexHull) Type() ShapeType { return ShapeTypeConvexHull }
func (h *ConvexHull) IsConvex() bool  { return true }

// FaceCount returns the number of triangular faces of the hull
func (h *ConvexHull) FaceCount() int { return len(h.faces) }

func (h *ConvexHull) ComputeAABB(transform Transform) AABB {
	aabb := EmptyAABB()
	for _, p := range h.Points {
		aabb = aabb.Extend(transform.Apply(p))
	}
	return aabb
}

// Volume sums the signed tetrahedra between the origin and each face
func (h *ConvexHull) Volume() float64 {
	volume := 0.0
	for _, f := range h.faces {
		a, b, c := h.Points[f.indices[0]], h.Points[f.indices[1]], h.Points[f.indices[2]]
		volume += a.Dot(b.Cross(c)) / 6.0
	}
	return math.Abs(volume)
}

// CenterOfMass returns the centroid of the hull volume
func (h *ConvexHull) CenterOfMass() mgl64.Vec3 {
	volume := 0.0
	weighted := mgl64.Vec3{}
	for _, f := range h.faces {
		a, b, c := h.Points[f.indices[0]], h.Points[f.indices[1]], h.Points[f.indices[2]]
		v := a.Dot(b.Cross(c)) / 6.0
		volume += v
		weighted = weighted.Add(a.Add(b).Add(c).Mul(v / 4.0))
	}
	if math.Abs(volume) < hullTolerance {
		return mgl64.Vec3{}
	}
	return weighted.Mul(1.0 / volume)
}

// ComputeInertia integrates the covariance of the tetrahedra fanned from the
// origin, then shifts the tensor to the hull's center of mass.
func (h *ConvexHull) ComputeInertia(mass float64) mgl64.Mat3 {
	volume := h.Volume()
	if volume <= 0 || len(h.faces) == 0 {
		return mgl64.Mat3{}
	}
	density := mass / volume

	canonical := mgl64.Mat3{
		2, 1, 1,
		1, 2, 1,
		1, 1, 2,
	}.Mul(1.0 / 120.0)

	covariance := mgl64.Mat3{}
	for _, f := range h.faces {
		a, b, c := h.Points[f.indices[0]], h.Points[f.indices[1]], h.Points[f.indices[2]]
		A := mgl64.Mat3FromCols(a, b, c)
		det := A.Det()
		covariance = covariance.Add(A.Mul3(canonical).Mul3(A.Transpose()).Mul(det))
	}
	covariance = covariance.Mul(density)

	inertia := mgl64.Ident3().Mul(covariance.Trace()).Sub(covariance)

	com := h.CenterOfMass()
	shift := mgl64.Ident3().Mul(com.Dot(com)).Sub(com.OuterProd3(com)).Mul(mass)
	return inertia.Sub(shift)
}

// RayCast clips the segment against every face plane (Cyrus-Beck)
func (h *ConvexHull) RayCast(start, end mgl64.Vec3) (RayHit, bool) {
	if len(h.faces) == 0 {
		return RayHit{}, false
	}
	dir := end.Sub(start)
	tEnter, tExit := 0.0, 1.0
	var normal mgl64.Vec3
	id := 0

	for i, f := range h.faces {
		denom := f.normal.Dot(dir)
		dist := f.offset - f.normal.Dot(start)
		if math.Abs(denom) < 1e-12 {
			if dist < 0 {
				return RayHit{}, false
			}
			continue
		}
		t := dist / denom
		if denom < 0 {
			if t > tEnter {
				tEnter = t
				normal = f.normal
				id = i
			}
		} else if t < tExit {
			tExit = t
		}
		if tEnter > tExit {
			return RayHit{}, false
		}
	}

	if normal == (mgl64.Vec3{}) {
		// started inside
		return RayHit{T: 0, Normal: dir.Normalize().Mul(-1)}, true
	}
	return RayHit{T: tEnter, Normal: normal, ID: id}, true
}

func (h *ConvexHull) ForEachPolygon(fn func(face []mgl64.Vec3)) {
	face := make([]mgl64.Vec3, 3)
	for _, f := range h.faces {
		face[0] = h.Points[f.indices[0]]
		face[1] = h.Points[f.indices[1]]
		face[2] = h.Points[f.indices[2]]
		fn(face)
	}
}

func (h *ConvexHull) Scale(scale mgl64.Vec3) {
	for i := range h.Points {
		h.Points[i] = mulElem(h.Points[i], scale)
	}
	h.build()
}

func (h *ConvexHull) Clone() ShapeInterface {
	return NewConvexHull(h.Points)
}
