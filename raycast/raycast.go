// Package raycast runs ray queries against an ogrenewt world
package raycast

import (
	"slices"

	"github.com/akmonengine/ogrenewt"
	"github.com/akmonengine/ogrenewt/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Hit is one body crossed by a ray
type Hit struct {
	Body      ogrenewt.PhysicsBody
	Collision *actor.Collision
	// Distance is the parametric distance along the ray, 0 at the start and
	// 1 at the end
	Distance    float64
	Normal      mgl64.Vec3
	CollisionID int
}

// Point returns the world position of the hit on the ray start-end
func (h Hit) Point(start, end mgl64.Vec3) mgl64.Vec3 {
	return actor.LerpVec3(start, end, h.Distance)
}

// PreFilter decides whether a body takes part in the query at all
type PreFilter func(body ogrenewt.PhysicsBody, collision *actor.Collision) bool

// Filter receives every accepted hit. Returning true narrows the query to
// hits closer than this one; returning false keeps the whole ray.
type Filter func(hit Hit) bool

// Raycast is a reusable ray query. It is not safe for concurrent use, and
// must not run from a physics callback.
type Raycast struct {
	preFilter PreFilter
	filter    Filter

	start, end mgl64.Vec3
	record     bool
	discarded  []ogrenewt.PhysicsBody
}

func New(preFilter PreFilter, filter Filter) *Raycast {
	return &Raycast{preFilter: preFilter, filter: filter}
}

func (r *Raycast) SetPreFilter(preFilter PreFilter) { r.preFilter = preFilter }

// SetDebugRecording keeps the bodies rejected by the pre-filter so they can
// be drawn
func (r *Raycast) SetDebugRecording(enabled bool) {
	r.record = enabled
	if !enabled {
		r.discarded = nil
	}
}

func (r *Raycast) IsRecording() bool { return r.record }

// Go casts the ray from start to end through w
func (r *Raycast) Go(w *ogrenewt.World, start, end mgl64.Vec3) {
	r.start, r.end = start, end
	r.discarded = r.discarded[:0]

	var prefilter func(ogrenewt.PhysicsBody, *actor.Collision) bool
	if r.preFilter != nil {
		prefilter = func(body ogrenewt.PhysicsBody, collision *actor.Collision) bool {
			if r.preFilter(body, collision) {
				return true
			}
			if r.record && !slices.Contains(r.discarded, body) {
				r.discarded = append(r.discarded, body)
			}
			return false
		}
	}

	w.CastRay(start, end, prefilter, func(hit ogrenewt.RayHit) float64 {
		accepted := Hit{
			Body:        hit.Body,
			Collision:   hit.Collision,
			Distance:    hit.Distance,
			Normal:      hit.Normal,
			CollisionID: hit.CollisionID,
		}
		if r.filter != nil && r.filter(accepted) {
			return hit.Distance
		}
		return 1
	})
}

func (r *Raycast) Start() mgl64.Vec3 { return r.start }
func (r *Raycast) End() mgl64.Vec3   { return r.end }

// Discarded returns the bodies the pre-filter rejected during the last query,
// when debug recording is on
func (r *Raycast) Discarded() []ogrenewt.PhysicsBody {
	return slices.Clone(r.discarded)
}

// BasicRaycast collects every hit of the ray
type BasicRaycast struct {
	*Raycast

	world  *ogrenewt.World
	sorted bool
	hits   []Hit
}

// NewBasicRaycast casts start-end through w right away. With sorted the hits
// are ordered by ascending distance.
func NewBasicRaycast(w *ogrenewt.World, start, end mgl64.Vec3, sorted bool) *BasicRaycast {
	b := &BasicRaycast{sorted: sorted}
	b.Raycast = New(nil, func(hit Hit) bool {
		b.hits = append(b.hits, hit)
		return false
	})
	b.Go(w, start, end)
	return b
}

// Go casts the ray again, dropping the hits of the previous query
func (b *BasicRaycast) Go(w *ogrenewt.World, start, end mgl64.Vec3) {
	b.world = w
	b.hits = b.hits[:0]
	b.Raycast.Go(w, start, end)
	if b.sorted {
		slices.SortStableFunc(b.hits, func(x, y Hit) int {
			switch {
			case x.Distance < y.Distance:
				return -1
			case x.Distance > y.Distance:
				return 1
			default:
				return 0
			}
		})
	}
}

func (b *BasicRaycast) HitCount() int { return len(b.hits) }

// Hits returns the hits of the last query, sorted if the raycast sorts
func (b *BasicRaycast) Hits() []Hit { return slices.Clone(b.hits) }

// InfoAt returns hit i. An out of range i is clamped to the nearest hit; a
// raycast without hits returns the zero Hit.
func (b *BasicRaycast) InfoAt(i int) Hit {
	if len(b.hits) == 0 {
		return Hit{}
	}
	if i < 0 || i >= len(b.hits) {
		clamped := min(max(i, 0), len(b.hits)-1)
		if b.world != nil {
			b.world.Logger().Debugf("raycast: hit %d out of range, using hit %d", i, clamped)
		}
		i = clamped
	}
	return b.hits[i]
}

// FirstHit returns the closest hit, sorted or not
func (b *BasicRaycast) FirstHit() (Hit, bool) {
	if len(b.hits) == 0 {
		return Hit{}, false
	}
	first := b.hits[0]
	for _, hit := range b.hits[1:] {
		if hit.Distance < first.Distance {
			first = hit
		}
	}
	return first, true
}

// HitPoints returns the world position of every hit of the last query
func (b *BasicRaycast) HitPoints() []mgl64.Vec3 {
	points := make([]mgl64.Vec3, len(b.hits))
	for i, hit := range b.hits {
		points[i] = hit.Point(b.start, b.end)
	}
	return points
}
