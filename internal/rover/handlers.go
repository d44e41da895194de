package rover

import (
	"errors"
	"math"
	"time"

	"github.com/banshee-data/forager/internal/geom"
	"github.com/banshee-data/forager/internal/msgs"
)

// HandleLocalPose records a sample of the continuously updating pose.
func (c *RoverContext) HandleLocalPose(p geom.Pose2D) {
	p.Heading = geom.NormalizeAngle(p.Heading)
	c.pose = p
	c.havePose = true
	c.transform.UpdateLocal(p, c.clock.Now())
}

// HandleMapPose records a sample of the drift-corrected pose.
func (c *RoverContext) HandleMapPose(p geom.Pose2D) {
	p.Heading = geom.NormalizeAngle(p.Heading)
	c.mapPose = p
	c.haveMap = true
	c.transform.UpdateMap(p, c.clock.Now())
	c.localization.Add(p)
}

// HandleJoystick drives the rover directly outside autonomous mode.
func (c *RoverContext) HandleJoystick(j msgs.Joystick) {
	if c.mode.Autonomous() {
		return
	}
	c.drive(c.deadband(j.Linear), c.deadband(j.Angular))
}

func (c *RoverContext) deadband(v float64) float64 {
	if math.Abs(v) < c.params.TeleopDeadband {
		return 0
	}
	return v
}

// HandleMode switches operator mode. Entering autonomous mode re-arms the
// first-boot dispersal; leaving it cancels every protocol and timer.
func (c *RoverContext) HandleMode(m msgs.Mode) {
	prev := c.mode
	c.mode = m
	c.stop()

	now := c.clock.Now()
	switch {
	case m.Autonomous() && !prev.Autonomous():
		c.activate(now)
	case !m.Autonomous() && prev.Autonomous():
		c.cancelAll()
		c.obstacleLatched = false
		c.itemDetected = false
		c.grasp.Reset()
		c.dropoff.Reset()
		c.transition(StateSeekGoal)
		c.info("Switched to %s", m)
	}
}

func (c *RoverContext) activate(now time.Time) {
	c.activatedAt = now
	c.interestStart = now
	c.goalChangedAt = now
	c.goal = c.pose
	c.transition(StateSeekGoal)
	c.startFirstBoot(now)
}

// HandleSonar fuses raw ranges into an obstacle signal and handles it.
func (c *RoverContext) HandleSonar(r msgs.SonarRanges) {
	c.HandleObstacle(c.sonar.Fuse(r, c.clock.Now()))
}

// HandleTargets classifies one camera batch and reacts to it. An empty
// batch only clears visibility.
func (c *RoverContext) HandleTargets(dets []msgs.Detection) {
	if !c.mode.Autonomous() {
		return
	}
	now := c.clock.Now()

	obs := msgs.Classify(dets, c.params.HomeMarkerID, c.params.ItemID, c.params.CameraOffset)
	t := msgs.Count(obs)
	c.lastTally = t
	c.markersVisible = t.Markers > 0
	c.dropoff.SetTargetsSeen(t.Markers, t.MarkersLeft, t.MarkersRight)

	if len(obs) == 0 {
		return
	}

	if t.Markers > 0 && !c.carrying {
		c.handleHomeSighting(t, now)
		c.itemDetected = false
		c.grasp.Reset()
		return
	}

	// In DROPOFF the collaborator already steers on the markers.
	if t.Markers > 0 && c.carrying && c.state != StateDropoff &&
		c.protocol != ProtocolTargetAvoid && c.protocol != ProtocolReversing {
		h := c.HomeEstimate()
		h.Heading = c.pose.BearingTo(h)
		c.setGoal(h)
		c.transition(StateSeekGoal)
	}

	if now.Sub(c.interestStart) <= c.params.ItemInterestDelay || t.Items == 0 {
		return
	}

	if c.carrying {
		if t.Items > 1 && !c.markersVisible && c.pickupSettled && !c.dropoff.InFinalApproach() {
			c.startTargetAvoid(t, now)
		}
		return
	}

	c.considerItem(obs)
}

// considerItem starts a pickup when the rover is free to chase an item.
func (c *RoverContext) considerItem(obs []msgs.Observation) {
	if !c.home.Known() || c.obstacleLatched {
		c.itemDetected = false
		return
	}
	if c.protocol != ProtocolNone && c.protocol != ProtocolTargetAvoid {
		return
	}
	res, ok := c.grasp.SelectTarget(obs)
	if !ok {
		return
	}
	if !c.itemDetected {
		c.info("Item seen, picking up")
	}
	c.itemDetected = true
	c.transition(StatePickup)
	c.applyAngles(res.Finger, res.Wrist)
}

// Heartbeat publishes the liveness line.
func (c *RoverContext) Heartbeat() {
	if s, ok := c.out.(StatusOutput); ok {
		s.Status("forager online")
	}
}

// updateLocalization refreshes the start pose in the local frame. A failed
// lookup keeps the last good value.
func (c *RoverContext) updateLocalization(now time.Time) {
	if !c.initialised {
		return
	}
	p, err := c.transform.MapToLocal(c.mapStart, now)
	if err != nil {
		if !c.transformErr && errors.Is(err, ErrTransformUnavailable) {
			logf("keeping last start pose: %v", err)
		}
		c.transformErr = true
		return
	}
	if c.transformErr {
		logf("transform available again")
	}
	c.transformErr = false
	c.startLocal = p
	c.haveStartLocal = true
}
