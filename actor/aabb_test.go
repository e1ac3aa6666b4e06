package actor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func box(minX, minY, minZ, maxX, maxY, maxZ float64) AABB {
	return AABB{Min: mgl64.Vec3{minX, minY, minZ}, Max: mgl64.Vec3{maxX, maxY, maxZ}}
}

func TestAABBOverlaps(t *testing.T) {
	unit := box(0, 0, 0, 1, 1, 1)

	tests := []struct {
		name  string
		a, b  AABB
		wants bool
	}{
		{"separated on X", unit, box(2, 0, 0, 3, 1, 1), false},
		{"separated on Y", unit, box(0, 2, 0, 1, 3, 1), false},
		{"separated on Z", unit, box(0, 0, 2, 1, 1, 3), false},
		{"overlap on two axes only", unit, box(0.5, 0.5, 5, 1.5, 1.5, 6), false},
		{"partial overlap", unit, box(0.5, 0.5, 0.5, 1.5, 1.5, 1.5), true},
		{"contained", box(-5, -5, -5, 5, 5, 5), unit, true},
		{"face touching", unit, box(1, 0, 0, 2, 1, 1), true},
		{"edge touching", unit, box(1, 1, 0, 2, 2, 1), true},
		{"corner touching", unit, box(1, 1, 1, 2, 2, 2), true},
		{"negative coordinates", box(-3, -3, -3, -1, -1, -1), box(-2, -2, -2, 0, 0, 0), true},
		{"point inside", unit, box(0.5, 0.5, 0.5, 0.5, 0.5, 0.5), true},
		{"flat boxes crossing", box(0, 0, 0, 2, 0, 2), box(1, 0, 1, 3, 0, 3), true},
		{"large against tiny", box(-1e6, -1e6, -1e6, 1e6, 1e6, 1e6), box(0, 0, 0, 1e-6, 1e-6, 1e-6), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.wants {
				t.Errorf("a.Overlaps(b) = %v, want %v", got, tt.wants)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.wants {
				t.Errorf("b.Overlaps(a) = %v, want %v", got, tt.wants)
			}
		})
	}

	t.Run("not transitive", func(t *testing.T) {
		a, b, c := box(0, 0, 0, 2, 2, 2), box(1, 1, 1, 3, 3, 3), box(2.5, 2.5, 2.5, 4, 4, 4)
		if !a.Overlaps(b) || !b.Overlaps(c) || a.Overlaps(c) {
			t.Error("a-b and b-c overlap while a-c does not")
		}
	})
}

func TestAABBContainsPoint(t *testing.T) {
	aabb := box(-1, -2, -3, 1, 2, 3)

	tests := []struct {
		name  string
		point mgl64.Vec3
		wants bool
	}{
		{"center", mgl64.Vec3{0, 0, 0}, true},
		{"min corner", aabb.Min, true},
		{"max corner", aabb.Max, true},
		{"face center", mgl64.Vec3{1, 0, 0}, true},
		{"edge midpoint", mgl64.Vec3{1, 2, 0}, true},
		{"just outside", mgl64.Vec3{1 + 1e-9, 0, 0}, false},
		{"outside on Z", mgl64.Vec3{0, 0, -4}, false},
		{"NaN", mgl64.Vec3{math.NaN(), 0, 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := aabb.ContainsPoint(tt.point); got != tt.wants {
				t.Errorf("ContainsPoint(%v) = %v, want %v", tt.point, got, tt.wants)
			}
		})
	}

	for i, corner := range aabb.Corners() {
		if !aabb.ContainsPoint(corner) {
			t.Errorf("corner %d %v is not contained", i, corner)
		}
	}
}

func TestAABBExtendAndUnion(t *testing.T) {
	empty := EmptyAABB()
	if empty.ContainsPoint(mgl64.Vec3{}) || empty.Overlaps(box(-1, -1, -1, 1, 1, 1)) {
		t.Error("an empty box contains nothing")
	}

	grown := empty.Extend(mgl64.Vec3{1, 2, 3})
	if grown.Min != grown.Max || grown.Min != (mgl64.Vec3{1, 2, 3}) {
		t.Errorf("first Extend() = %v, want a point box", grown)
	}
	grown = grown.Extend(mgl64.Vec3{-1, 0, 5})
	if want := box(-1, 0, 3, 1, 2, 5); grown != want {
		t.Errorf("Extend() = %v, want %v", grown, want)
	}

	union := box(0, 0, 0, 1, 1, 1).Union(box(2, -1, 0.5, 3, 0.5, 0.7))
	if want := box(0, -1, 0, 3, 1, 1); union != want {
		t.Errorf("Union() = %v, want %v", union, want)
	}
	if got := EmptyAABB().Union(union); got != union {
		t.Errorf("empty Union() = %v, want %v", got, union)
	}

	if c := union.Center(); c != (mgl64.Vec3{1.5, 0, 0.5}) {
		t.Errorf("Center() = %v", c)
	}
	if h := union.HalfExtents(); h != (mgl64.Vec3{1.5, 1, 0.5}) {
		t.Errorf("HalfExtents() = %v", h)
	}
}

func TestAABBTransformed(t *testing.T) {
	local := box(-1, -1, -1, 1, 1, 1)

	tests := []struct {
		name      string
		transform Transform
		want      AABB
	}{
		{"identity", NewTransform(), local},
		{
			"translated",
			Transform{Position: mgl64.Vec3{5, 0, -2}, Rotation: mgl64.QuatIdent()},
			box(4, -1, -3, 6, 1, -1),
		},
		{
			"quarter turn keeps a cube",
			Transform{Rotation: mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0})},
			local,
		},
		{
			"eighth turn widens",
			Transform{Rotation: mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 1, 0})},
			box(-math.Sqrt2, -1, -math.Sqrt2, math.Sqrt2, 1, math.Sqrt2),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := local.Transformed(tt.transform)
			if !vec3Equal(got.Min, tt.want.Min, 1e-9) || !vec3Equal(got.Max, tt.want.Max, 1e-9) {
				t.Errorf("Transformed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAABBSegmentIntersects(t *testing.T) {
	aabb := box(-1, -1, -1, 1, 1, 1)

	tests := []struct {
		name       string
		start, end mgl64.Vec3
		wantHit    bool
		wantT      float64
	}{
		{"through the middle", mgl64.Vec3{-3, 0, 0}, mgl64.Vec3{3, 0, 0}, true, 1.0 / 3.0},
		{"from the far side", mgl64.Vec3{0, 0, 5}, mgl64.Vec3{0, 0, -5}, true, 0.4},
		{"starting inside", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{5, 0, 0}, true, 0},
		{"parallel outside", mgl64.Vec3{-3, 2, 0}, mgl64.Vec3{3, 2, 0}, false, 0},
		{"stops short", mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{-2, 0, 0}, false, 0},
		{"diagonal miss", mgl64.Vec3{-3, 0, 3}, mgl64.Vec3{0, 0, 3}, false, 0},
		{"grazing an edge", mgl64.Vec3{-3, 1, 1}, mgl64.Vec3{3, 1, 1}, true, 1.0 / 3.0},
		{"zero length inside", mgl64.Vec3{0.5, 0.5, 0.5}, mgl64.Vec3{0.5, 0.5, 0.5}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := aabb.SegmentIntersects(tt.start, tt.end)
			if ok != tt.wantHit {
				t.Fatalf("SegmentIntersects() hit = %v, want %v", ok, tt.wantHit)
			}
			if ok && !floatEqual(got, tt.wantT, 1e-9) {
				t.Errorf("SegmentIntersects() t = %v, want %v", got, tt.wantT)
			}
		})
	}
}
