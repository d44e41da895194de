package rover

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/banshee-data/forager/internal/geom"
	"github.com/banshee-data/forager/internal/msgs"
)

// Event is an inbound message for the controller. Events are applied on
// the loop goroutine in the order they were posted.
type Event interface {
	apply(c *RoverContext)
}

// LocalPoseEvent carries a local-frame pose sample.
type LocalPoseEvent struct{ Pose geom.Pose2D }

// MapPoseEvent carries a map-frame pose sample.
type MapPoseEvent struct{ Pose geom.Pose2D }

// ObstacleEvent carries a coded obstacle signal.
type ObstacleEvent struct{ Signal msgs.ObstacleSignal }

// SonarEvent carries raw ranges to be fused into an obstacle signal.
type SonarEvent struct{ Ranges msgs.SonarRanges }

// TargetsEvent carries one camera detection batch.
type TargetsEvent struct{ Detections []msgs.Detection }

// JoystickEvent carries operator drive axes.
type JoystickEvent struct{ Axes msgs.Joystick }

// ModeEvent carries an operator mode change.
type ModeEvent struct{ Mode msgs.Mode }

func (e LocalPoseEvent) apply(c *RoverContext) { c.HandleLocalPose(e.Pose) }
func (e MapPoseEvent) apply(c *RoverContext)   { c.HandleMapPose(e.Pose) }
func (e ObstacleEvent) apply(c *RoverContext)  { c.HandleObstacle(e.Signal) }
func (e SonarEvent) apply(c *RoverContext)     { c.HandleSonar(e.Ranges) }
func (e TargetsEvent) apply(c *RoverContext)   { c.HandleTargets(e.Detections) }
func (e JoystickEvent) apply(c *RoverContext)  { c.HandleJoystick(e.Axes) }
func (e ModeEvent) apply(c *RoverContext)      { c.HandleMode(e.Mode) }

// Observer receives a snapshot after every tick. Observe runs on the loop
// goroutine and must not block.
type Observer interface {
	Observe(s Snapshot)
}

// LoopStats counts loop activity.
type LoopStats struct {
	Events  uint64
	Dropped uint64
	Ticks   uint64
}

// Loop serialises events, ticks and timers onto one goroutine.
type Loop struct {
	c         *RoverContext
	events    chan Event
	tick      time.Duration
	heartbeat time.Duration
	observers []Observer

	applied atomic.Uint64
	dropped atomic.Uint64
	ticks   atomic.Uint64
}

// NewLoop wraps c. queue is the event buffer size.
func NewLoop(c *RoverContext, queue int, observers ...Observer) *Loop {
	if queue < 1 {
		queue = 1
	}
	return &Loop{
		c:         c,
		events:    make(chan Event, queue),
		tick:      c.params.TickInterval,
		heartbeat: c.params.HeartbeatInterval,
		observers: observers,
	}
}

// Post enqueues e without blocking. It reports false when the queue is
// full and the event was dropped.
func (l *Loop) Post(e Event) bool {
	select {
	case l.events <- e:
		return true
	default:
		if n := l.dropped.Add(1); n == 1 || n%100 == 0 {
			logf("event queue full, %d events dropped", n)
		}
		return false
	}
}

// Stats returns the loop counters.
func (l *Loop) Stats() LoopStats {
	return LoopStats{
		Events:  l.applied.Load(),
		Dropped: l.dropped.Load(),
		Ticks:   l.ticks.Load(),
	}
}

// Run processes events until ctx is done, then stops the rover.
func (l *Loop) Run(ctx context.Context) error {
	clock := l.c.clock
	ticker := clock.NewTicker(l.tick)
	defer ticker.Stop()
	heartbeat := clock.NewTicker(l.heartbeat)
	defer heartbeat.Stop()

	logf("control loop running, tick %v", l.tick)
	for {
		select {
		case <-ctx.Done():
			l.c.stop()
			logf("control loop stopped")
			return nil
		case e := <-l.events:
			e.apply(l.c)
			l.applied.Add(1)
		case <-ticker.C():
			l.step()
		case <-heartbeat.C():
			l.c.Heartbeat()
		}
	}
}

func (l *Loop) step() {
	now := l.c.clock.Now()
	l.c.FireTimers(now)
	l.c.Tick()
	l.ticks.Add(1)
	if len(l.observers) == 0 {
		return
	}
	s := l.c.Snapshot()
	for _, o := range l.observers {
		o.Observe(s)
	}
}
