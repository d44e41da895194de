package rover

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/forager/internal/geom"
)

// ErrTransformUnavailable is returned when the map to local transform
// cannot be computed from fresh samples.
var ErrTransformUnavailable = errors.New("map to local transform unavailable")

// FrameTransformer relates the map frame to the local odometry frame using
// the latest pose sample from each. It never waits: when either sample is
// missing or stale the lookup fails immediately.
type FrameTransformer struct {
	staleness time.Duration

	local, mapPose geom.Pose2D
	localAt, mapAt time.Time
}

// NewFrameTransformer returns a transformer that rejects samples older
// than staleness.
func NewFrameTransformer(staleness time.Duration) *FrameTransformer {
	return &FrameTransformer{staleness: staleness}
}

// UpdateLocal records a local-frame pose sample.
func (f *FrameTransformer) UpdateLocal(p geom.Pose2D, at time.Time) {
	f.local, f.localAt = p, at
}

// UpdateMap records a map-frame pose sample.
func (f *FrameTransformer) UpdateMap(p geom.Pose2D, at time.Time) {
	f.mapPose, f.mapAt = p, at
}

// MapToLocal expresses a map-frame pose in the local frame.
func (f *FrameTransformer) MapToLocal(p geom.Pose2D, now time.Time) (geom.Pose2D, error) {
	if f.localAt.IsZero() || f.mapAt.IsZero() {
		return geom.Pose2D{}, fmt.Errorf("%w: waiting for both pose streams", ErrTransformUnavailable)
	}
	if age := now.Sub(f.localAt); age > f.staleness {
		return geom.Pose2D{}, fmt.Errorf("%w: local pose is %v old", ErrTransformUnavailable, age)
	}
	if age := now.Sub(f.mapAt); age > f.staleness {
		return geom.Pose2D{}, fmt.Errorf("%w: map pose is %v old", ErrTransformUnavailable, age)
	}

	dTheta := f.local.Heading - f.mapPose.Heading
	sin, cos := math.Sincos(dTheta)
	dx, dy := p.X-f.mapPose.X, p.Y-f.mapPose.Y
	return geom.Pose2D{
		X:       f.local.X + cos*dx - sin*dy,
		Y:       f.local.Y + sin*dx + cos*dy,
		Heading: geom.NormalizeAngle(p.Heading + dTheta),
	}, nil
}
