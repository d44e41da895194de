package rover

import (
	"time"

	"github.com/banshee-data/forager/internal/msgs"
)

// HandleObstacle reacts to one obstacle signal. A new obstacle stops the
// rover and starts the cooldown; only once the cooldown has fired does the
// rover turn away. When the signal clears after turning, the rover heads
// off at a small angle and the search resumes from where it was. During
// first-boot dispersal an obstacle only holds the wheels; the dispersal
// timers keep running.
func (c *RoverContext) HandleObstacle(sig msgs.ObstacleSignal) {
	if !c.mode.Autonomous() {
		return
	}
	c.blocked = sig == msgs.ObstacleBlocked
	if c.itemDetected && !c.carrying {
		// The item in front of the gripper is not an obstacle.
		return
	}
	now := c.clock.Now()

	if sig != msgs.ObstacleNone {
		if c.protocol == ProtocolFirstBoot {
			if !c.obstacleLatched {
				c.info("Obstacle %s during dispersal, holding", sig)
			}
			c.obstacleLatched = true
			c.stop()
			return
		}
		c.obstacleLatched = true
		if c.protocol != ProtocolObstacleAvoid {
			if !c.claim(ProtocolObstacleAvoid) {
				return
			}
			c.avoiding = false
			c.timers.obstacleCooldown.Start(now)
			c.info("Obstacle %s, stopping", sig)
		}
		c.obstacleCommand()
		return
	}

	if !c.obstacleLatched {
		return
	}
	c.obstacleLatched = false
	c.timers.obstacleCooldown.Stop()
	if c.protocol != ProtocolObstacleAvoid {
		return
	}

	if c.avoiding {
		heading := c.pose.Heading + c.params.ObstacleResumeSign*c.mirror()*c.params.ObstacleResumeAngle
		c.setGoal(c.pose.Offset(heading, c.params.ObstacleResumeDistance))
		c.transition(StateRotate)
		c.search.NoteInterruption()
		c.info("Obstacle cleared, driving on")
	} else {
		c.transition(StateSeekGoal)
	}
	c.avoiding = false
	c.release(ProtocolObstacleAvoid)
}

// obstacleCommand holds the rover still during the cooldown and turns it
// in place once avoiding.
func (c *RoverContext) obstacleCommand() {
	if !c.avoiding {
		c.stop()
		return
	}
	c.drive(0, c.params.ObstacleTurnSign*c.mirror()*c.params.ObstacleTurnRate)
}

func (c *RoverContext) onObstacleCooldown(now time.Time) {
	if c.protocol != ProtocolObstacleAvoid {
		return
	}
	if c.markersVisible && c.carrying {
		// Probably the home zone itself; keep waiting.
		c.timers.obstacleCooldown.Restart(now)
		c.info("Obstacle near home, continuing to wait")
		return
	}
	c.avoiding = true
	c.stop()
	c.info("Obstacle avoidance initiated")
}

// startTargetAvoid steers a carrying rover away from other items so it
// does not push them around.
func (c *RoverContext) startTargetAvoid(t msgs.Tally, now time.Time) {
	if c.protocol == ProtocolTargetAvoid || !c.claim(ProtocolTargetAvoid) {
		return
	}
	heading := c.pose.Heading + c.params.TargetAvoidAngle
	if t.ItemsLeft > t.ItemsRight {
		heading = c.pose.Heading - c.params.TargetAvoidAngle
	}
	c.setGoal(c.pose.Offset(heading, c.params.TargetAvoidDistance))
	c.transition(StateRotate)
	c.timers.targetAvoid.Start(now)
	c.info("Avoiding items while carrying")
}

func (c *RoverContext) onTargetAvoidDone(now time.Time) {
	sign := 1.0
	if c.search.Alternating() {
		sign = -1
	}
	heading := c.pose.Heading + sign*c.params.TargetResumeAngle
	c.setGoal(c.pose.Offset(heading, c.params.TargetAvoidDistance))
	c.transition(StateRotate)
	c.release(ProtocolTargetAvoid)
	c.info("Finished avoiding items, heading home")
}
