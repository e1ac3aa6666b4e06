package newton

import (
	"sort"

	"github.com/akmonengine/ogrenewt/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// RayPrefilter is asked once per candidate body; returning false skips it
type RayPrefilter func(body *Body, collision *actor.Collision) bool

// RayFilter receives each hit with its world contact point, world normal,
// sub-shape id and parametric distance in [0,1]. The returned value becomes
// the new upper bound of the ray: returning intersectParam keeps only closer
// hits, returning 1 keeps the whole ray.
type RayFilter func(body *Body, collision *actor.Collision, contact, normal mgl64.Vec3, collisionID int, intersectParam float64) float64

type rayCandidate struct {
	body  *Body
	entry float64
}

// RayCast walks the bodies crossed by the segment start-end in order of their
// box entry distance. filter is called for every hit closer than the current
// bound.
func (w *World) RayCast(start, end mgl64.Vec3, filter RayFilter, prefilter RayPrefilter) {
	if filter == nil {
		return
	}
	w.rayCast(start, end, nil, filter, prefilter)
}

func (w *World) rayCast(start, end mgl64.Vec3, skip *Body, filter RayFilter, prefilter RayPrefilter) {
	candidates := make([]rayCandidate, 0, len(w.bodies))
	for _, b := range w.bodies {
		if b == skip || b.destroyed {
			continue
		}
		if entry, ok := b.aabb.SegmentIntersects(start, end); ok {
			candidates = append(candidates, rayCandidate{body: b, entry: entry})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].entry < candidates[j].entry
	})

	bound := 1.0
	for _, c := range candidates {
		if c.entry > bound {
			break
		}
		b := c.body
		if prefilter != nil && !prefilter(b, b.collision) {
			continue
		}

		localStart := b.transform.ApplyInverse(start)
		localEnd := b.transform.ApplyInverse(end)
		hit, ok := b.collision.RayCast(localStart, localEnd)
		if !ok || hit.T > bound {
			continue
		}

		contact := actor.LerpVec3(start, end, hit.T)
		normal := b.transform.Rotation.Rotate(hit.Normal)
		if param := filter(b, b.collision, contact, normal, hit.ID, hit.T); param < bound {
			bound = max(param, 0)
		}
	}
}
