package rover

import (
	"math"
	"time"
)

// startFirstBoot arms the dispersal sequence: wait, drive forward, turn
// round, then start searching. It spreads out rovers that share a start
// pose.
func (c *RoverContext) startFirstBoot(now time.Time) {
	if !c.params.FirstBootEnabled {
		c.firstBoot = firstBootDone
		return
	}
	if !c.claim(ProtocolFirstBoot) {
		return
	}
	c.firstBoot = firstBootWaiting
	c.timers.fbWait.Restart(now)
	c.info("Switched to autonomous, waiting before dispersal")
}

func (c *RoverContext) onFirstBootWait(now time.Time) {
	if c.protocol != ProtocolFirstBoot {
		return
	}
	c.firstBoot = firstBootForward
	c.setGoal(c.pose.Offset(c.pose.Heading, c.params.FirstBootDistance))
	c.transition(StateSeekGoal)
	c.timers.fbForward.Restart(now)
	c.info("Initial wait complete, driving forward")
}

func (c *RoverContext) onFirstBootForward(now time.Time) {
	if c.protocol != ProtocolFirstBoot {
		return
	}
	c.firstBoot = firstBootTurning
	c.setGoal(c.pose.Offset(c.pose.Heading+math.Pi, c.params.FirstBootDistance))
	c.transition(StateSeekGoal)
	c.timers.fbTurn.Restart(now)
	c.info("Finished driving, turning 180")
}

func (c *RoverContext) onFirstBootTurn(now time.Time) {
	if c.protocol != ProtocolFirstBoot {
		return
	}
	c.firstBoot = firstBootDone
	c.release(ProtocolFirstBoot)
	c.search.SetCenter(c.HomeEstimate())
	wp := c.search.ResumeAfterInterruption(c.pose, c.goal)
	c.setGoal(wp.Goal)
	c.transition(StateRotate)
	c.info("Dispersal done, traveling to point %d in pattern: %.2f", wp.Vertex, wp.Radius)

	if c.obstacleLatched && c.claim(ProtocolObstacleAvoid) {
		c.avoiding = false
		c.timers.obstacleCooldown.Start(now)
		c.stop()
		c.info("Obstacle still present after dispersal, stopping")
	}
}
