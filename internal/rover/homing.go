package rover

import (
	"math"
	"time"

	"github.com/banshee-data/forager/internal/msgs"
)

// handleHomeSighting runs one step of centering on the home markers.
func (c *RoverContext) handleHomeSighting(t msgs.Tally, now time.Time) {
	if c.protocol != ProtocolCentering {
		if c.timers.centeringHold.Active() {
			return
		}
		if !c.claim(ProtocolCentering) {
			return
		}
		c.centeringAnchor = c.pose
		c.setGoal(c.pose)
		c.transition(StateSeekGoal)
		c.info("Seen a home marker, centering")
	}
	c.timers.centerLost.Restart(now)

	if c.centerOnMarkers(t) {
		c.onCentered(now)
	}
}

// centerOnMarkers squares the rover up on the marker cluster. It returns
// true once enough markers are visible on both sides of the image; until
// then it issues a reverse-and-turn towards the side still holding
// markers. When one side outnumbers the other by the skew threshold the
// smaller side is ignored so the rover keeps turning towards the bulk of
// the cluster.
func (c *RoverContext) centerOnMarkers(t msgs.Tally) bool {
	p := c.params
	left := t.MarkersLeft > 0
	right := t.MarkersRight > 0

	if t.Markers > p.CenteringVisibility {
		switch {
		case t.MarkersLeft-t.MarkersRight >= p.CenteringSkew:
			right = false
		case t.MarkersRight-t.MarkersLeft >= p.CenteringSkew:
			left = false
		}
		if left && right {
			return true
		}
	}

	switch {
	case right:
		c.drive(-p.CenteringReverseSpeed, -p.CenteringTurnRate)
	case left:
		c.drive(-p.CenteringReverseSpeed, p.CenteringTurnRate)
	default:
		c.drive(-p.CenteringBlindReverse, 0)
	}
	return false
}

func (c *RoverContext) onCentered(now time.Time) {
	sample := c.pose.Offset(c.pose.Heading, c.params.HomeOffsetDistance)
	sample.Heading = 0
	est := c.home.RecordSample(sample)
	c.search.SetCenter(est)

	if !c.homeFound {
		c.homeFound = true
		c.info("Found initial home location at (%.2f, %.2f)", est.X, est.Y)
	} else {
		c.info("Refound home, estimate now (%.2f, %.2f) from %d samples", est.X, est.Y, c.home.Count())
	}

	c.startReversal(now)
	c.timers.centeringHold.Restart(now)
	c.search.MarkRingComplete()
	c.itemDetected = false
	c.grasp.Reset()
}

func (c *RoverContext) onCenteringLost(now time.Time) {
	if c.protocol != ProtocolCentering {
		return
	}
	c.info("Lost sight of home before centering, resuming search")
	c.release(ProtocolCentering)
	c.search.NoteInterruption()
	c.stop()
	c.transition(StateSeekGoal)
}

// startReversal backs straight out for the reverse duration.
func (c *RoverContext) startReversal(now time.Time) {
	if !c.claim(ProtocolReversing) {
		return
	}
	c.backingUp = true
	c.timers.reverse.Restart(now)
	c.drive(-c.params.ReverseSpeed, 0)
	c.info("Reversing away from home")
}

func (c *RoverContext) onReverseDone(now time.Time) {
	c.backingUp = false
	g := c.pose.Offset(c.pose.Heading+math.Pi, c.search.CurrentLegDistance())
	c.setGoal(g)
	c.transition(StateRotate)
	c.timers.turn180.Start(now)
	c.info("Reverse done, turning 180")
}

func (c *RoverContext) onTurn180Done(now time.Time) {
	c.release(ProtocolReversing)
	c.search.SetCenter(c.HomeEstimate())
	wp := c.search.ResumeAfterInterruption(c.pose, c.goal)
	c.setGoal(wp.Goal)
	c.transition(StateRotate)
	c.info("Traveling to point %d in pattern: %.2f", wp.Vertex, wp.Radius)
}
