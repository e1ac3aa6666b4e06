package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// TreeMesh is a static triangle soup, typically level geometry. It has no
// volume and can only back static bodies.
type TreeMesh struct {
	Vertices []mgl64.Vec3
	// Indices holds three vertex indices per triangle
	Indices []int
}

func (m *TreeMesh) Type() ShapeType { return ShapeTypeTreeMesh }

// TriangleCount returns the number of complete triangles in the mesh
func (m *TreeMesh) TriangleCount() int { return len(m.Indices) / 3 }

func (m *TreeMesh) triangle(i int) (mgl64.Vec3, mgl64.Vec3, mgl64.Vec3) {
	return m.Vertices[m.Indices[3*i]], m.Vertices[m.Indices[3*i+1]], m.Vertices[m.Indices[3*i+2]]
}

func (m *TreeMesh) ComputeAABB(transform Transform) AABB {
	aabb := EmptyAABB()
	for _, v := range m.Vertices {
		aabb = aabb.Extend(transform.Apply(v))
	}
	return aabb
}

func (m *TreeMesh) Volume() float64 { return 0 }

func (m *TreeMesh) ComputeInertia(mass float64) mgl64.Mat3 {
	return mgl64.Mat3{}
}

func (m *TreeMesh) RayCast(start, end mgl64.Vec3) (RayHit, bool) {
	best := RayHit{T: math.MaxFloat64}
	found := false
	for i := 0; i < m.TriangleCount(); i++ {
		a, b, c := m.triangle(i)
		if t, normal, ok := rayTriangle(start, end, a, b, c); ok && t < best.T {
			best = RayHit{T: t, Normal: normal, ID: i}
			found = true
		}
	}
	return best, found
}

func (m *TreeMesh) ForEachPolygon(fn func(face []mgl64.Vec3)) {
	face := make([]mgl64.Vec3, 3)
	for i := 0; i < m.TriangleCount(); i++ {
		face[0], face[1], face[2] = m.triangle(i)
		fn(face)
	}
}

func (m *TreeMesh) Scale(scale mgl64.Vec3) {
	for i := range m.Vertices {
		m.Vertices[i] = mulElem(m.Vertices[i], scale)
	}
}

func (m *TreeMesh) Clone() ShapeInterface {
	return &TreeMesh{
		Vertices: append([]mgl64.Vec3(nil), m.Vertices...),
		Indices:  append([]int(nil), m.Indices...),
	}
}

// HeightField is a regular grid of heights on the local XZ plane, starting at
// the origin. Heights are row-major: Heights[z*Width+x].
type HeightField struct {
	Width, Depth int
	CellSize     float64
	HeightScale  float64
	Heights      []float64
}

func (h *HeightField) Type() ShapeType { return ShapeTypeHeightField }

func (h *HeightField) vertex(x, z int) mgl64.Vec3 {
	return mgl64.Vec3{float64(x) * h.CellSize, h.Heights[z*h.Width+x] * h.HeightScale, float64(z) * h.CellSize}
}

func (h *HeightField) valid() bool {
	return h.Width >= 2 && h.Depth >= 2 && len(h.Heights) >= h.Width*h.Depth
}

func (h *HeightField) localAABB() AABB {
	if !h.valid() {
		return AABB{}
	}
	minY, maxY := math.MaxFloat64, -math.MaxFloat64
	for _, v := range h.Heights[:h.Width*h.Depth] {
		minY = math.Min(minY, v*h.HeightScale)
		maxY = math.Max(maxY, v*h.HeightScale)
	}
	return AABB{
		Min: mgl64.Vec3{0, minY, 0},
		Max: mgl64.Vec3{float64(h.Width-1) * h.CellSize, maxY, float64(h.Depth-1) * h.CellSize},
	}
}

// forEachTriangle walks two triangles per cell; id is the triangle index
func (h *HeightField) forEachTriangle(fn func(id int, a, b, c mgl64.Vec3)) {
	if !h.valid() {
		return
	}
	id := 0
	for z := 0; z < h.Depth-1; z++ {
		for x := 0; x < h.Width-1; x++ {
			p00, p10 := h.vertex(x, z), h.vertex(x+1, z)
			p01, p11 := h.vertex(x, z+1), h.vertex(x+1, z+1)
			fn(id, p00, p01, p11)
			fn(id+1, p00, p11, p10)
			id += 2
		}
	}
}

func (h *HeightField) ComputeAABB(transform Transform) AABB {
	return h.localAABB().Transformed(transform)
}

func (h *HeightField) Volume() float64 { return 0 }

func (h *HeightField) ComputeInertia(mass float64) mgl64.Mat3 {
	return mgl64.Mat3{}
}

func (h *HeightField) RayCast(start, end mgl64.Vec3) (RayHit, bool) {
	if _, ok := h.localAABB().SegmentIntersects(start, end); !ok {
		return RayHit{}, false
	}
	best := RayHit{T: math.MaxFloat64}
	found := false
	h.forEachTriangle(func(id int, a, b, c mgl64.Vec3) {
		if t, normal, ok := rayTriangle(start, end, a, b, c); ok && t < best.T {
			best = RayHit{T: t, Normal: normal, ID: id}
			found = true
		}
	})
	return best, found
}

func (h *HeightField) ForEachPolygon(fn func(face []mgl64.Vec3)) {
	face := make([]mgl64.Vec3, 3)
	h.forEachTriangle(func(_ int, a, b, c mgl64.Vec3) {
		face[0], face[1], face[2] = a, b, c
		fn(face)
	})
}

// Scale uses X for the cell size and Y for the height scale; Z is ignored
// since cells are square.
func (h *HeightField) Scale(scale mgl64.Vec3) {
	h.CellSize *= math.Abs(scale.X())
	h.HeightScale *= scale.Y()
}

func (h *HeightField) Clone() ShapeInterface {
	c := *h
	c.Heights = append([]float64(nil), h.Heights...)
	return &c
}

// rayTriangle is Möller–Trumbore restricted to the segment, two-sided.
// The returned normal faces the ray origin.
func rayTriangle(start, end, a, b, c mgl64.Vec3) (float64, mgl64.Vec3, bool) {
	const eps = 1e-12
	dir := end.Sub(start)
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := dir.Cross(e2)
	det := e1.Dot(p)
	if math.Abs(det) < eps {
		return 0, mgl64.Vec3{}, false
	}
	inv := 1.0 / det
	s := start.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, mgl64.Vec3{}, false
	}
	q := s.Cross(e1)
	v := dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, mgl64.Vec3{}, false
	}
	t := e2.Dot(q) * inv
	if t < 0 || t > 1 {
		return 0, mgl64.Vec3{}, false
	}

	normal := e1.Cross(e2).Normalize()
	if normal.Dot(dir) > 0 {
		normal = normal.Mul(-1)
	}
	return t, normal, true
}
