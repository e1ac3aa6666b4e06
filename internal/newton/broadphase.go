package newton

import (
	"math"
	"sort"

	"github.com/akmonengine/ogrenewt/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// cellKey holds the coordinates of a cell of the grid
type cellKey struct {
	X, Y, Z int
}

type cell struct {
	bodyIndices []int
}

// Pair is a couple of bodies whose bounding boxes overlap
type Pair struct {
	BodyA *Body
	BodyB *Body

	indexA, indexB int
}

// SpatialGrid is a uniform hashed grid used as broad phase. Bodies with an
// unbounded box (planes) are kept aside and paired with everything.
type SpatialGrid struct {
	cellSize  float64
	cells     []cell
	cellMask  int
	unbounded []int
}

// maxCellsPerAxis bounds the cells a single body is inserted into
const maxCellsPerAxis = 64

// NewSpatialGrid creates a grid with numCells rounded up to a power of two
func NewSpatialGrid(cellSize float64, numCells int) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = 1
	}
	numCells = nextPowerOfTwo(numCells)

	cells := make([]cell, numCells)
	for i := range cells {
		cells[i].bodyIndices = make([]int, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cells:    cells,
		cellMask: numCells - 1,
	}
}

func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

func (sg *SpatialGrid) isUnbounded(aabb actor.AABB) bool {
	for i := 0; i < 3; i++ {
		if (aabb.Max[i]-aabb.Min[i])/sg.cellSize > maxCellsPerAxis {
			return true
		}
	}
	return false
}

// Insert adds the body index to every cell its box covers
func (sg *SpatialGrid) Insert(bodyIndex int, aabb actor.AABB) {
	if sg.isUnbounded(aabb) {
		sg.unbounded = append(sg.unbounded, bodyIndex)
		return
	}
	sg.forEachCell(aabb, func(idx int) {
		sg.cells[idx].bodyIndices = append(sg.cells[idx].bodyIndices, bodyIndex)
	})
}

func (sg *SpatialGrid) Clear() {
	for i := range sg.cells {
		sg.cells[i].bodyIndices = sg.cells[i].bodyIndices[:0]
	}
	sg.unbounded = sg.unbounded[:0]
}

func (sg *SpatialGrid) SortCells() {
	for i := range sg.cells {
		if len(sg.cells[i].bodyIndices) > 1 {
			sort.Ints(sg.cells[i].bodyIndices)
		}
	}
}

func (sg *SpatialGrid) forEachCell(aabb actor.AABB, fn func(idx int)) {
	minCell := sg.worldToCell(aabb.Min)
	maxCell := sg.worldToCell(aabb.Max)
	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				fn(sg.hashCell(cellKey{x, y, z}))
			}
		}
	}
}

// FindPairs returns each overlapping pair once, in a deterministic order
func (sg *SpatialGrid) FindPairs(bodies []*Body) []Pair {
	pairs := make([]Pair, 0, len(bodies)/2)
	seen := make(map[[2]int]bool)

	add := func(i, j int) {
		if i == j {
			return
		}
		if j < i {
			i, j = j, i
		}
		key := [2]int{i, j}
		if seen[key] {
			return
		}
		seen[key] = true
		if a, b := bodies[i], bodies[j]; canCollide(a, b) && a.aabb.Overlaps(b.aabb) {
			pairs = append(pairs, Pair{BodyA: a, BodyB: b, indexA: i, indexB: j})
		}
	}

	for _, u := range sg.unbounded {
		for i := range bodies {
			add(u, i)
		}
	}
	for bodyIdx, body := range bodies {
		if sg.isUnbounded(body.aabb) {
			continue
		}
		sg.forEachCell(body.aabb, func(idx int) {
			for _, otherIdx := range sg.cells[idx].bodyIndices {
				if otherIdx > bodyIdx {
					add(bodyIdx, otherIdx)
				}
			}
		})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].indexA != pairs[j].indexA {
			return pairs[i].indexA < pairs[j].indexA
		}
		return pairs[i].indexB < pairs[j].indexB
	})
	return pairs
}

func canCollide(a, b *Body) bool {
	if !a.collidable || !b.collidable {
		return false
	}
	switch {
	case a.trigger && b.trigger:
		return false
	case a.trigger:
		return b.bodyType != BodyTypeStatic
	case b.trigger:
		return a.bodyType != BodyTypeStatic
	case a.bodyType != BodyTypeDynamic && b.bodyType != BodyTypeDynamic:
		return false
	}
	if a.isSleeping && b.isSleeping {
		return false
	}
	return true
}

func (sg *SpatialGrid) worldToCell(pos mgl64.Vec3) cellKey {
	return cellKey{
		X: int(math.Floor(pos.X() / sg.cellSize)),
		Y: int(math.Floor(pos.Y() / sg.cellSize)),
		Z: int(math.Floor(pos.Z() / sg.cellSize)),
	}
}

func (sg *SpatialGrid) hashCell(key cellKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & sg.cellMask
}
