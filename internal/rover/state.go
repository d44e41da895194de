package rover

import (
	"math"
	"time"
)

// State is the top-level navigation state.
type State int

const (
	StateSeekGoal State = iota
	StateRotate
	StateDriveToGoal
	StatePickup
	StateDropoff
)

// stateWaiting is published while the operator holds the drive train.
const stateWaiting = "WAITING"

func (s State) String() string {
	switch s {
	case StateSeekGoal:
		return "SEEK_GOAL"
	case StateRotate:
		return "ROTATE"
	case StateDriveToGoal:
		return "DRIVE_TO_GOAL"
	case StatePickup:
		return "PICKUP"
	case StateDropoff:
		return "DROPOFF"
	default:
		return "UNKNOWN"
	}
}

// maxCascade bounds same-tick transitions. The longest legal chain is
// SEEK_GOAL, DROPOFF, ROTATE, DRIVE_TO_GOAL.
const maxCascade = 6

// Tick re-evaluates the controller. Deferred timers are fired separately
// by FireTimers, which the loop calls first.
func (c *RoverContext) Tick() {
	now := c.clock.Now()
	c.updateLocalization(now)

	if !c.mode.Autonomous() {
		c.emitState(stateWaiting)
		return
	}

	if !c.initialised {
		if now.Sub(c.activatedAt) <= c.params.StartDelay {
			return
		}
		c.mapStart = c.localization.Smoothed()
		c.initialised = true
		logf("map start pose captured at %s", c.mapStart)
	}

	if c.holdForProtocol() {
		c.emitState(c.state.String())
		return
	}

	if !c.carrying && !c.itemDetected && !c.timers.gripperHold.Active() {
		c.finger(c.params.CruiseFinger)
		c.wrist(c.params.CruiseWrist)
	}

	c.runStateMachine(now)
	c.emitState(c.state.String())
}

// holdForProtocol issues the drive command of a protocol that owns the
// wheels outright and reports whether the state machine should be skipped.
func (c *RoverContext) holdForProtocol() bool {
	switch c.protocol {
	case ProtocolReversing:
		if c.backingUp {
			c.drive(-c.params.ReverseSpeed, 0)
			return true
		}
	case ProtocolObstacleAvoid:
		c.obstacleCommand()
		return true
	case ProtocolCentering:
		// Centering drives from each camera batch.
		return true
	case ProtocolFirstBoot:
		if c.firstBoot == firstBootWaiting || c.obstacleLatched {
			c.stop()
			return true
		}
	}
	return false
}

func (c *RoverContext) runStateMachine(now time.Time) {
	for i := 0; i < maxCascade; i++ {
		var cascade bool
		switch c.state {
		case StateSeekGoal:
			cascade = c.seekGoal(now)
		case StateRotate:
			cascade = c.rotate()
		case StateDriveToGoal:
			cascade = c.driveToGoal()
		case StatePickup:
			cascade = c.pickup(now)
		case StateDropoff:
			cascade = c.dropoffStep(now)
		}
		if !cascade {
			return
		}
	}
	logf("state machine did not settle in %d steps, holding %s", maxCascade, c.state)
}

// transition moves to s. Leaving DROPOFF by any route resets the
// drop-off collaborator so the next visit starts from its first phase.
func (c *RoverContext) transition(s State) {
	if s == c.state {
		return
	}
	if c.state == StateDropoff {
		c.dropoff.Reset()
	}
	c.state = s
}

func (c *RoverContext) arrived() bool {
	return c.pose.DistanceTo(c.goal) < c.params.GoalTolerance
}

func (c *RoverContext) seekGoal(now time.Time) bool {
	if c.carrying && c.protocol != ProtocolObstacleAvoid && c.protocol != ProtocolCentering {
		c.transition(StateDropoff)
		return true
	}

	if math.Abs(c.pose.HeadingError(c.goal)) > c.params.RotateTolerance {
		c.transition(StateRotate)
		return true
	}

	if !c.arrived() && math.Abs(c.pose.BearingError(c.goal)) < math.Pi/2 {
		c.transition(StateDriveToGoal)
		return true
	}

	if c.searchEligible(now) {
		c.nextSearchWaypoint()
		c.transition(StateRotate)
		return true
	}
	return false
}

func (c *RoverContext) searchEligible(now time.Time) bool {
	if !c.initialised || c.firstBoot != firstBootDone || c.itemDetected {
		return false
	}
	if c.protocol != ProtocolNone && c.protocol != ProtocolTargetAvoid {
		return false
	}
	return now.Sub(c.goalChangedAt) > c.params.ReturnToSearch
}

func (c *RoverContext) nextSearchWaypoint() {
	c.search.SetCenter(c.HomeEstimate())
	wp := c.search.NextWaypoint(c.pose)
	c.setGoal(wp.Goal)
	c.info("Traveling to point %d in pattern: %.2f", wp.Vertex, wp.Radius)

	if !c.homeFound {
		return
	}
	mapPose := c.pose
	if c.haveMap {
		mapPose = c.mapPose
	}
	c.blend.Record(mapPose, c.pose)
	if wp.CompletedRing && !c.markersVisible {
		mid := c.blend.Midpoint()
		est := c.home.RecordSample(mid)
		c.search.SetCenter(est)
		logf("ring complete without sighting, home sample %s", mid)
	}
}

func (c *RoverContext) rotate() bool {
	errYaw := c.pose.HeadingError(c.goal)
	if math.Abs(errYaw) > c.params.RotateTolerance {
		c.drive(0, errYaw)
		return false
	}
	c.transition(StateDriveToGoal)
	return true
}

func (c *RoverContext) driveToGoal() bool {
	errYaw := c.pose.HeadingError(c.goal)
	switch {
	case !c.arrived() && math.Abs(c.pose.BearingError(c.goal)) < math.Pi/2:
		c.drive(c.params.SearchVelocity, errYaw/2)
	case math.Abs(errYaw) > c.params.HeadingTolerance:
		c.drive(0, errYaw)
	default:
		c.stop()
		c.transition(StateSeekGoal)
	}
	return false
}

func (c *RoverContext) pickup(now time.Time) bool {
	if !c.itemDetected || c.carrying || c.protocol == ProtocolReversing {
		c.transition(StateSeekGoal)
		return false
	}

	res := c.grasp.AttemptPickup(c.blocked)
	c.applyAngles(res.Finger, res.Wrist)

	if res.GiveUp {
		c.itemDetected = false
		c.stop()
		c.grasp.Reset()
		c.transition(StateSeekGoal)
		c.info("Giving up on item")
		return false
	}

	if res.PickedUp {
		c.grasp.Reset()
		c.carrying = true
		c.pickupSettled = false
		c.timers.afterPickup.Restart(now)

		h := c.HomeEstimate()
		h.Heading = c.pose.BearingTo(h)
		c.setGoal(h)
		c.wrist(c.params.CruiseWrist)
		c.stop()
		c.transition(StateRotate)
		c.info("Picked up item, returning home")
		return false
	}

	c.drive(res.Drive.Linear, res.Drive.Angular)
	return false
}

func (c *RoverContext) dropoffStep(now time.Time) bool {
	if !c.carrying {
		c.transition(StateSeekGoal)
		return true
	}
	if c.protocol == ProtocolObstacleAvoid || c.protocol == ProtocolCentering {
		c.transition(StateSeekGoal)
		return false
	}

	h := c.HomeEstimate()
	c.dropoff.SetCenterDistance(c.pose.DistanceTo(h))
	c.dropoff.SetLocations(h, c.pose, now.Sub(c.interestStart))
	res := c.dropoff.State()

	if res.TimerFired {
		c.interestStart = now
	}
	c.applyAngles(res.Finger, res.Wrist)

	switch {
	case res.Reset:
		c.interestStart = now
		c.carrying = false
		c.itemDetected = false
		c.delivered++
		c.stop()
		c.timers.gripperHold.Restart(now)
		c.transition(StateSeekGoal)
		c.info("Item delivered (%d so far)", c.delivered)
		return false

	case res.ContinueDriving && res.Goal != nil && now.Sub(c.interestStart) >= c.params.ReturnToSearch:
		c.setGoal(*res.Goal)
		c.interestStart = now
		c.transition(StateRotate)
		return true
	}

	// Precision driving: the collaborator owns the wheels, hold the goal
	// on the current pose so nothing else steers.
	c.goal = c.pose
	c.drive(res.Drive.Linear, res.Drive.Angular)
	return false
}

func (c *RoverContext) applyAngles(finger, wrist *float64) {
	if finger != nil {
		c.finger(*finger)
	}
	if wrist != nil {
		c.wrist(*wrist)
	}
}
