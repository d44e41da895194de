// Package monitor serves the controller's debug pages and renders the
// driven path as charts: an interactive scatter over HTTP and a PNG plot
// written when the process exits.
package monitor

import (
	"sync"

	"github.com/banshee-data/forager/internal/geom"
	"github.com/banshee-data/forager/internal/monitoring"
	"github.com/banshee-data/forager/internal/rover"
)

var logf = monitoring.Tagged("Monitor")

const (
	// DefaultMaxPoints bounds the stored path.
	DefaultMaxPoints = 5000
	// DefaultMinStep is the distance the robot must cover before another
	// path point is stored.
	DefaultMinStep = 0.02
)

// PathPoint is one stored pose with the state it was driven in.
type PathPoint struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	State    string  `json:"state"`
	Carrying bool    `json:"carrying"`
}

// Tracker keeps the latest snapshot and a decimated history of the path
// and home estimates. It implements rover.Observer.
type Tracker struct {
	maxPoints int
	minStep   float64

	mu       sync.RWMutex
	latest   rover.Snapshot
	have     bool
	path     []PathPoint
	homes    []geom.Pose2D
	samples  int
	observed uint64
}

// NewTracker keeps at most maxPoints path points spaced at least minStep
// metres apart. Non-positive values select the defaults.
func NewTracker(maxPoints int, minStep float64) *Tracker {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	if minStep <= 0 {
		minStep = DefaultMinStep
	}
	return &Tracker{maxPoints: maxPoints, minStep: minStep}
}

func (t *Tracker) Observe(s rover.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.latest = s
	t.have = true
	t.observed++

	if n := len(t.path); n == 0 || s.Pose.DistanceTo(geom.Pose2D{X: t.path[n-1].X, Y: t.path[n-1].Y}) >= t.minStep {
		if n >= t.maxPoints {
			// Keep every other point so long runs stay within bounds
			// while covering the whole trajectory.
			kept := t.path[:0]
			for i := 0; i < n; i += 2 {
				kept = append(kept, t.path[i])
			}
			t.path = kept
		}
		t.path = append(t.path, PathPoint{X: s.Pose.X, Y: s.Pose.Y, State: s.State, Carrying: s.Carrying})
	}
	if s.HomeFound && s.HomeSamples != t.samples {
		t.samples = s.HomeSamples
		t.homes = append(t.homes, s.Home)
		if len(t.homes) > t.maxPoints {
			t.homes = t.homes[len(t.homes)-t.maxPoints:]
		}
	}
}

// Latest returns the last observed snapshot.
func (t *Tracker) Latest() (rover.Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest, t.have
}

// Path returns a copy of the stored path.
func (t *Tracker) Path() []PathPoint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]PathPoint(nil), t.path...)
}

// Homes returns the home estimate recorded each time a new sample arrived.
func (t *Tracker) Homes() []geom.Pose2D {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]geom.Pose2D(nil), t.homes...)
}

// Observed counts snapshots seen.
func (t *Tracker) Observed() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.observed
}
