package manipulator

import (
	"time"

	"github.com/banshee-data/forager/internal/geom"
	"github.com/banshee-data/forager/internal/msgs"
	"github.com/banshee-data/forager/internal/timeutil"
)

// DropoffConfig shapes the reference delivery.
type DropoffConfig struct {
	// ApproachRadius is how close to the home estimate the controller takes
	// over from goal driving.
	ApproachRadius float64
	ApproachSpeed  float64
	SteerGain      float64
	SpinRate       float64
	// SpinTimeout gives up looking for markers near home and hands back a
	// goal so the rover re-approaches.
	SpinTimeout time.Duration
	EnterTime   time.Duration
	ReleaseTime time.Duration
	BackupTime  time.Duration
	BackupSpeed float64
}

// DefaultDropoffConfig returns timings for a one metre home zone.
func DefaultDropoffConfig() DropoffConfig {
	return DropoffConfig{
		ApproachRadius: 0.5,
		ApproachSpeed:  0.15,
		SteerGain:      0.05,
		SpinRate:       0.2,
		SpinTimeout:    10 * time.Second,
		EnterTime:      time.Second,
		ReleaseTime:    time.Second,
		BackupTime:     2 * time.Second,
		BackupSpeed:    0.2,
	}
}

type dropoffPhase int

const (
	dropoffCruise dropoffPhase = iota
	dropoffSeek
	dropoffApproach
	dropoffEnter
	dropoffRelease
	dropoffBackup
)

// DropoffController brings a carried item into the home zone: drive to the
// estimate, steer on the markers, roll in once they pass under the camera,
// release and back out.
type DropoffController struct {
	cfg   DropoffConfig
	clock timeutil.Clock

	phase      dropoffPhase
	phaseStart time.Time

	count, left, right int
	distance           float64
	home, current      geom.Pose2D
	elapsed            time.Duration
}

// NewDropoffController returns a controller in the cruise phase.
func NewDropoffController(cfg DropoffConfig, clock timeutil.Clock) *DropoffController {
	return &DropoffController{cfg: cfg, clock: clock}
}

// SetTargetsSeen records the latest home marker counts.
func (c *DropoffController) SetTargetsSeen(count, left, right int) {
	c.count, c.left, c.right = count, left, right
}

// SetCenterDistance records the distance to the home estimate.
func (c *DropoffController) SetCenterDistance(d float64) { c.distance = d }

// SetLocations records the home estimate, the current pose and the time
// since the controller last changed goal.
func (c *DropoffController) SetLocations(home, current geom.Pose2D, elapsed time.Duration) {
	c.home, c.current, c.elapsed = home, current, elapsed
}

// InFinalApproach reports whether the rover is committed to entering the zone.
func (c *DropoffController) InFinalApproach() bool {
	return c.phase >= dropoffApproach
}

// State advances the delivery by one tick.
func (c *DropoffController) State() DropoffResult {
	now := c.clock.Now()
	since := now.Sub(c.phaseStart)

	switch c.phase {
	case dropoffCruise:
		if c.count > 0 {
			c.enter(dropoffApproach, now)
			return c.State()
		}
		if c.distance > c.cfg.ApproachRadius {
			return c.goHome()
		}
		c.enter(dropoffSeek, now)
		return DropoffResult{Wrist: angle(WristCarry)}

	case dropoffSeek:
		if c.count > 0 {
			c.enter(dropoffApproach, now)
			return c.State()
		}
		if since >= c.cfg.SpinTimeout {
			c.enter(dropoffCruise, now)
			return c.goHome()
		}
		return DropoffResult{Drive: msgs.DriveCommand{Angular: c.cfg.SpinRate}}

	case dropoffApproach:
		if c.count == 0 {
			// Markers have passed under the camera.
			c.enter(dropoffEnter, now)
			return DropoffResult{
				Drive:      msgs.DriveCommand{Linear: c.cfg.ApproachSpeed},
				TimerFired: true,
			}
		}
		turn := float64(c.left-c.right) * c.cfg.SteerGain
		return DropoffResult{Drive: msgs.DriveCommand{Linear: c.cfg.ApproachSpeed, Angular: turn}}

	case dropoffEnter:
		if since >= c.cfg.EnterTime {
			c.enter(dropoffRelease, now)
			return DropoffResult{Finger: angle(FingerOpen), Wrist: angle(WristDown)}
		}
		return DropoffResult{Drive: msgs.DriveCommand{Linear: c.cfg.ApproachSpeed}}

	case dropoffRelease:
		if since >= c.cfg.ReleaseTime {
			c.enter(dropoffBackup, now)
		}
		return DropoffResult{Finger: angle(FingerOpen)}

	case dropoffBackup:
		if since >= c.cfg.BackupTime {
			return DropoffResult{Reset: true, Finger: angle(FingerClosed), Wrist: angle(WristUp)}
		}
		return DropoffResult{Drive: msgs.DriveCommand{Linear: -c.cfg.BackupSpeed}}
	}
	return DropoffResult{}
}

// Reset returns to the cruise phase.
func (c *DropoffController) Reset() {
	c.phase = dropoffCruise
	c.phaseStart = c.clock.Now()
	c.count, c.left, c.right = 0, 0, 0
}

func (c *DropoffController) goHome() DropoffResult {
	goal := geom.Pose2D{X: c.home.X, Y: c.home.Y, Heading: c.current.BearingTo(c.home)}
	return DropoffResult{ContinueDriving: true, Goal: &goal}
}

func (c *DropoffController) enter(p dropoffPhase, now time.Time) {
	c.phase = p
	c.phaseStart = now
}
