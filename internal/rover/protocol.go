package rover

// Protocol names the sub-protocol that currently owns navigation.
// Exactly one is active at a time.
type Protocol int

// Protocols in ascending priority. A protocol may only take control from
// one of equal or lower priority. Obstacles never cancel first boot: they
// only hold the wheels while dispersal timers keep running.
const (
	ProtocolNone Protocol = iota
	ProtocolTargetAvoid
	ProtocolObstacleAvoid
	ProtocolFirstBoot
	ProtocolCentering
	ProtocolReversing
)

func (p Protocol) String() string {
	switch p {
	case ProtocolNone:
		return "none"
	case ProtocolTargetAvoid:
		return "target-avoid"
	case ProtocolFirstBoot:
		return "first-boot"
	case ProtocolObstacleAvoid:
		return "obstacle-avoid"
	case ProtocolCentering:
		return "centering"
	case ProtocolReversing:
		return "reversing"
	default:
		return "unknown"
	}
}

// claim hands control to p if it outranks or equals the holder. The
// holder is cancelled first so none of its timers fire afterwards.
func (c *RoverContext) claim(p Protocol) bool {
	if p < c.protocol {
		return false
	}
	if c.protocol != p && c.protocol != ProtocolNone {
		logf("%s preempts %s", p, c.protocol)
		c.cancel(c.protocol)
	}
	c.protocol = p
	return true
}

// release gives control back if p still holds it.
func (c *RoverContext) release(p Protocol) {
	if c.protocol == p {
		c.protocol = ProtocolNone
	}
}

// cancel stops p's timers and clears its progress.
func (c *RoverContext) cancel(p Protocol) {
	switch p {
	case ProtocolFirstBoot:
		c.timers.fbWait.Stop()
		c.timers.fbForward.Stop()
		c.timers.fbTurn.Stop()
		c.firstBoot = firstBootDone
	case ProtocolObstacleAvoid:
		c.timers.obstacleCooldown.Stop()
		c.avoiding = false
	case ProtocolTargetAvoid:
		c.timers.targetAvoid.Stop()
	case ProtocolCentering:
		c.timers.centerLost.Stop()
	case ProtocolReversing:
		c.timers.reverse.Stop()
		c.timers.turn180.Stop()
		c.backingUp = false
	}
	if c.protocol == p {
		c.protocol = ProtocolNone
	}
}

// cancelAll drops every protocol and disarms every timer.
func (c *RoverContext) cancelAll() {
	for p := ProtocolTargetAvoid; p <= ProtocolReversing; p++ {
		c.cancel(p)
	}
	c.protocol = ProtocolNone
	c.schedule.StopAll()
}
