package manipulator

import (
	"math"
	"time"

	"github.com/banshee-data/forager/internal/msgs"
	"github.com/banshee-data/forager/internal/timeutil"
)

// PickupConfig times the reference grasp.
type PickupConfig struct {
	ApproachSpeed float64
	SteerGain     float64
	// MaxApproach bounds the blind drive at the item when the close-range
	// sensor never reports it.
	MaxApproach time.Duration
	GraspTime   time.Duration
	LiftTime    time.Duration
	Timeout     time.Duration
}

// DefaultPickupConfig returns conservative timings for a small gripper.
func DefaultPickupConfig() PickupConfig {
	return PickupConfig{
		ApproachSpeed: 0.15,
		SteerGain:     2.0,
		MaxApproach:   4 * time.Second,
		GraspTime:     time.Second,
		LiftTime:      time.Second,
		Timeout:       15 * time.Second,
	}
}

type pickupPhase int

const (
	pickupIdle pickupPhase = iota
	pickupApproach
	pickupGrasp
	pickupLift
)

// PickupController drives onto the nearest item, closes the fingers,
// lifts, and checks the item is still in front of the range sensor.
type PickupController struct {
	cfg   PickupConfig
	clock timeutil.Clock

	phase      pickupPhase
	target     msgs.Observation
	started    time.Time
	phaseStart time.Time
	held       bool
}

// NewPickupController returns an idle controller.
func NewPickupController(cfg PickupConfig, clock timeutil.Clock) *PickupController {
	return &PickupController{cfg: cfg, clock: clock}
}

// SelectTarget locks onto the nearest item in the batch and returns the
// opening posture. It reports false when the batch holds no item.
func (c *PickupController) SelectTarget(obs []msgs.Observation) (PickupResult, bool) {
	best := -1
	for i, o := range obs {
		if o.HomeMarker {
			continue
		}
		if best < 0 || o.Detection.Z < obs[best].Detection.Z {
			best = i
		}
	}
	if best < 0 {
		return PickupResult{}, false
	}

	c.target = obs[best]
	if c.phase == pickupIdle {
		now := c.clock.Now()
		c.phase = pickupApproach
		c.started = now
		c.phaseStart = now
		c.held = false
	}
	return PickupResult{Finger: angle(FingerOpen), Wrist: angle(WristDown)}, true
}

// AttemptPickup advances the grasp by one tick. blocked reports that the
// close-range sensor sees something right in front of the gripper.
func (c *PickupController) AttemptPickup(blocked bool) PickupResult {
	now := c.clock.Now()
	if c.phase == pickupIdle {
		return PickupResult{GiveUp: true}
	}
	if now.Sub(c.started) > c.cfg.Timeout {
		c.Reset()
		return PickupResult{GiveUp: true}
	}

	switch c.phase {
	case pickupApproach:
		if blocked || now.Sub(c.phaseStart) >= c.cfg.MaxApproach {
			c.enter(pickupGrasp, now)
			return PickupResult{Finger: angle(FingerClosed)}
		}
		turn := -c.target.Detection.X * c.cfg.SteerGain
		turn = math.Max(-0.5, math.Min(0.5, turn))
		return PickupResult{Drive: msgs.DriveCommand{Linear: c.cfg.ApproachSpeed, Angular: turn}}

	case pickupGrasp:
		if now.Sub(c.phaseStart) >= c.cfg.GraspTime {
			c.enter(pickupLift, now)
			return PickupResult{Wrist: angle(WristUp)}
		}
		return PickupResult{Finger: angle(FingerClosed)}

	case pickupLift:
		c.held = c.held || blocked
		if now.Sub(c.phaseStart) < c.cfg.LiftTime {
			return PickupResult{}
		}
		if c.held {
			return PickupResult{PickedUp: true, Wrist: angle(WristCarry)}
		}
		c.Reset()
		return PickupResult{GiveUp: true, Finger: angle(FingerOpen)}
	}
	return PickupResult{}
}

// Active reports whether a grasp is in progress.
func (c *PickupController) Active() bool { return c.phase != pickupIdle }

// Reset abandons any grasp in progress.
func (c *PickupController) Reset() {
	c.phase = pickupIdle
	c.held = false
}

func (c *PickupController) enter(p pickupPhase, now time.Time) {
	c.phase = p
	c.phaseStart = now
}
