package raycast

import (
	"bytes"
	"testing"

	"github.com/akmonengine/ogrenewt"
	"github.com/akmonengine/ogrenewt/actor"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	rayStart = mgl64.Vec3{0, 0, 0}
	rayEnd   = mgl64.Vec3{0, 0, -10}
)

// newLane places three static spheres on the -Z axis at 2, 5 and 8 units
func newLane(t *testing.T, opts ...ogrenewt.Option) (*ogrenewt.World, []*ogrenewt.Body) {
	t.Helper()
	w := ogrenewt.NewWorld(opts...)
	collision := actor.NewCollision(&actor.Sphere{Radius: 0.5})
	defer collision.Release()

	var bodies []*ogrenewt.Body
	for i, name := range []string{"near", "middle", "far"} {
		pose := actor.NewTransform()
		pose.Position = mgl64.Vec3{0, 0, -2 - 3*float64(i)}
		bodies = append(bodies, w.CreateRigidBody(name, collision, 0, pose))
	}
	return w, bodies
}

func names(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, hit := range hits {
		out[i] = hit.Body.Name()
	}
	return out
}

func TestBasicRaycast(t *testing.T) {
	tests := []struct {
		name   string
		sorted bool
	}{
		{"sorted", true},
		{"unsorted", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := newLane(t)
			ray := NewBasicRaycast(w, rayStart, rayEnd, tt.sorted)

			require.Equal(t, 3, ray.HitCount())
			first, ok := ray.FirstHit()
			require.True(t, ok)
			assert.Equal(t, "near", first.Body.Name())
			assert.InDelta(t, 0.15, first.Distance, 1e-9)
			assert.InDelta(t, 1.0, first.Normal.Z(), 1e-9)

			point := first.Point(rayStart, rayEnd)
			assert.InDelta(t, -1.5, point.Z(), 1e-9)
			assert.Len(t, ray.HitPoints(), 3)
			if tt.sorted {
				assert.Equal(t, []string{"near", "middle", "far"}, names(ray.Hits()))
			}
		})
	}
}

func TestBasicRaycastMisses(t *testing.T) {
	w, _ := newLane(t)
	ray := NewBasicRaycast(w, mgl64.Vec3{5, 0, 0}, mgl64.Vec3{5, 0, -10}, true)

	assert.Equal(t, 0, ray.HitCount())
	_, ok := ray.FirstHit()
	assert.False(t, ok)
	assert.Equal(t, Hit{}, ray.InfoAt(0))
}

func TestInfoAtClamps(t *testing.T) {
	var buf bytes.Buffer
	w, _ := newLane(t, ogrenewt.WithLogger(ogrenewt.NewWriterLogger(&buf, "", true)))
	ray := NewBasicRaycast(w, rayStart, rayEnd, true)

	assert.Equal(t, ray.InfoAt(2), ray.InfoAt(7))
	assert.Equal(t, ray.InfoAt(0), ray.InfoAt(-1))
	assert.Contains(t, buf.String(), "hit 7 out of range, using hit 2")
}

func TestBasicRaycastGoResets(t *testing.T) {
	w, bodies := newLane(t)
	ray := NewBasicRaycast(w, rayStart, rayEnd, true)
	require.Equal(t, 3, ray.HitCount())

	bodies[0].Destroy()
	ray.Go(w, rayStart, rayEnd)

	assert.Equal(t, []string{"middle", "far"}, names(ray.Hits()))
}

func TestClosestHitFilter(t *testing.T) {
	w, _ := newLane(t)
	var seen []string
	ray := New(nil, func(hit Hit) bool {
		seen = append(seen, hit.Body.Name())
		return true
	})

	ray.Go(w, rayStart, rayEnd)

	assert.Equal(t, []string{"near"}, seen)
	assert.Equal(t, rayStart, ray.Start())
	assert.Equal(t, rayEnd, ray.End())
}

func TestPreFilterRecordsDiscarded(t *testing.T) {
	tests := []struct {
		name      string
		recording bool
		discarded []string
	}{
		{"recording", true, []string{"middle"}},
		{"not recording", false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := newLane(t)
			ray := NewBasicRaycast(w, rayStart, rayEnd, true)
			ray.SetDebugRecording(tt.recording)
			ray.SetPreFilter(func(body ogrenewt.PhysicsBody, _ *actor.Collision) bool {
				return body.Name() != "middle"
			})

			ray.Go(w, rayStart, rayEnd)

			assert.Equal(t, []string{"near", "far"}, names(ray.Hits()))
			var discarded []string
			for _, body := range ray.Discarded() {
				discarded = append(discarded, body.Name())
			}
			assert.Equal(t, tt.discarded, discarded)
		})
	}
}
