// Package obstacle turns the three forward ultrasonic ranges into the coded
// obstacle signal the behaviour controller consumes.
package obstacle

import (
	"time"

	"github.com/banshee-data/forager/internal/msgs"
	"github.com/banshee-data/forager/internal/timeutil"
)

// Config holds the range thresholds in metres.
type Config struct {
	Collision   float64
	TooCloseMin float64
	TooCloseMax float64
	Blocked     float64
	// Confirm is how long a side reading must persist before it is reported.
	Confirm time.Duration
}

// DefaultConfig matches the sensor layout of the base rover.
func DefaultConfig() Config {
	return Config{
		Collision:   0.6,
		TooCloseMin: 0.25,
		TooCloseMax: 0.45,
		Blocked:     0.12,
		Confirm:     250 * time.Millisecond,
	}
}

// Fusion classifies range triples. A side obstacle is only reported once
// it has been seen continuously for Config.Confirm, unless it is already in
// the too-close band, which is reported at once. Not safe for concurrent use.
type Fusion struct {
	cfg       Config
	confirm   *timeutil.Deadline
	confirmed bool
}

// NewFusion returns a fusion stage with no confirmed obstacle.
func NewFusion(cfg Config) *Fusion {
	return &Fusion{cfg: cfg, confirm: timeutil.NewDeadline("sonar-confirm", cfg.Confirm)}
}

// Fuse classifies one set of ranges taken at now.
func (f *Fusion) Fuse(r msgs.SonarRanges, now time.Time) msgs.ObstacleSignal {
	if f.confirm.Expired(now) {
		f.confirm.Stop()
		f.confirmed = true
	}

	c := f.cfg.Collision
	var sig msgs.ObstacleSignal
	switch {
	case r.Left > c && r.Center > c && r.Right > c:
		sig = msgs.ObstacleNone
		f.confirm.Stop()
		f.confirmed = false
	case r.Left > c && r.Right < c:
		sig = f.side(r.Right, msgs.ObstacleRight, now)
	default:
		// Centre-only and left readings are both treated as left.
		sig = f.side(r.Left, msgs.ObstacleLeft, now)
	}

	if r.Center < f.cfg.Blocked {
		sig = msgs.ObstacleBlocked
	}
	return sig
}

func (f *Fusion) side(rng float64, sig msgs.ObstacleSignal, now time.Time) msgs.ObstacleSignal {
	if rng > f.cfg.TooCloseMin && rng < f.cfg.TooCloseMax {
		f.confirmed = true
		f.confirm.Stop()
		return msgs.ObstacleTooClose
	}
	if f.confirmed {
		return sig
	}
	f.confirm.Start(now)
	return msgs.ObstacleNone
}
