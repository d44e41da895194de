package rover

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/forager/internal/geom"
	"github.com/banshee-data/forager/internal/msgs"
)

func withFirstBoot(p *Params) { p.FirstBootEnabled = true }

func TestFirstBootDispersal(t *testing.T) {
	r := newRig(t, withFirstBoot)
	r.activate(geom.Pose2D{})

	assert.Equal(t, ProtocolFirstBoot, r.c.Protocol())
	assert.Equal(t, msgs.DriveCommand{}, r.out.lastDrive(), "waits in place")
	assert.Equal(t, []string{"first-boot-wait"}, r.c.schedule.Active())

	r.advance(8900 * time.Millisecond)
	goal := r.c.Goal()
	assert.InDelta(t, 0.45, goal.X, eps)
	assert.InDelta(t, 0.0, goal.Heading, eps)

	r.tick()
	assert.Equal(t, StateDriveToGoal, r.c.State())
	assert.Equal(t, msgs.DriveCommand{Linear: 0.2}, r.out.lastDrive())

	r.advance(10 * time.Second)
	goal = r.c.Goal()
	assert.InDelta(t, -0.45, goal.X, eps)
	assert.InDelta(t, math.Pi, math.Abs(goal.Heading), eps)
	assert.Equal(t, ProtocolFirstBoot, r.c.Protocol())

	r.advance(10 * time.Second)
	assert.Equal(t, ProtocolNone, r.c.Protocol())
	assert.Equal(t, firstBootDone, r.c.firstBoot)
	assert.Equal(t, StateRotate, r.c.State())
	goal = r.c.Goal()
	assert.InDelta(t, 1.0, goal.X, eps)
	assert.InDelta(t, 0.0, goal.Y, eps)
	assert.Empty(t, r.c.schedule.Active())
}

func TestFirstBootBlocksSearch(t *testing.T) {
	r := newRig(t, withFirstBoot)
	r.activate(geom.Pose2D{})

	r.clock.Advance(5 * time.Second)
	r.tick()
	assert.Equal(t, geom.Pose2D{}, r.c.Goal())
}

func TestFirstBootPreemptedByHomeSighting(t *testing.T) {
	r := newRig(t, withFirstBoot)
	r.activate(geom.Pose2D{})

	r.c.HandleTargets(markers(3, 0))

	assert.Equal(t, ProtocolCentering, r.c.Protocol())
	assert.Equal(t, firstBootDone, r.c.firstBoot)
	assert.Equal(t, []string{"centering-lost"}, r.c.schedule.Active())
}

func TestFirstBootHoldsThroughObstacle(t *testing.T) {
	r := newRig(t, withFirstBoot)
	r.activate(geom.Pose2D{})

	r.c.HandleObstacle(msgs.ObstacleRight)
	assert.Equal(t, ProtocolFirstBoot, r.c.Protocol())
	assert.Equal(t, firstBootWaiting, r.c.firstBoot)
	assert.Equal(t, msgs.DriveCommand{}, r.out.lastDrive())
	assert.Equal(t, []string{"first-boot-wait"}, r.c.schedule.Active())

	r.advance(time.Second)
	r.c.HandleObstacle(msgs.ObstacleNone)
	r.advance(4 * time.Second)
	r.tick()
	assert.Equal(t, ProtocolFirstBoot, r.c.Protocol())
	assert.Equal(t, geom.Pose2D{}, r.c.Goal(), "search must wait for dispersal")

	r.advance(3900 * time.Millisecond)
	assert.Equal(t, firstBootForward, r.c.firstBoot)
	assert.InDelta(t, 0.45, r.c.Goal().X, eps)

	r.tick()
	assert.Equal(t, msgs.DriveCommand{Linear: 0.2}, r.out.lastDrive())

	r.c.HandleObstacle(msgs.ObstacleLeft)
	r.tick()
	assert.Equal(t, msgs.DriveCommand{}, r.out.lastDrive(), "wheels held while blocked")
	assert.Equal(t, ProtocolFirstBoot, r.c.Protocol())

	r.c.HandleObstacle(msgs.ObstacleNone)
	r.tick()
	assert.Equal(t, msgs.DriveCommand{Linear: 0.2}, r.out.lastDrive())

	r.advance(10 * time.Second)
	r.advance(10 * time.Second)
	assert.Equal(t, ProtocolNone, r.c.Protocol())
	assert.Equal(t, firstBootDone, r.c.firstBoot)
	assert.InDelta(t, 1.0, r.c.Goal().X, eps)
}

func TestFirstBootHandsLatchedObstacleOn(t *testing.T) {
	r := newRig(t, withFirstBoot)
	r.activate(geom.Pose2D{})

	r.advance(8900 * time.Millisecond)
	r.advance(10 * time.Second)
	r.c.HandleObstacle(msgs.ObstacleLeft)
	r.advance(10 * time.Second)

	assert.Equal(t, firstBootDone, r.c.firstBoot)
	assert.Equal(t, ProtocolObstacleAvoid, r.c.Protocol())
	assert.Equal(t, []string{"obstacle-cooldown"}, r.c.schedule.Active())
	assert.Equal(t, msgs.DriveCommand{}, r.out.lastDrive())
}

func TestTargetAvoidCannotPreemptFirstBoot(t *testing.T) {
	r := newRig(t, withFirstBoot)
	r.activate(geom.Pose2D{})
	r.c.carrying = true
	r.clock.Advance(5 * time.Second)

	r.c.HandleTargets(items(2, 0))
	assert.Equal(t, ProtocolFirstBoot, r.c.Protocol())
}

func TestModeChanges(t *testing.T) {
	r := newRig(t, withFirstBoot)
	r.activate(geom.Pose2D{})
	require.NotEmpty(t, r.c.schedule.Active())

	r.c.HandleMode(msgs.ModeManual)
	assert.Equal(t, ProtocolNone, r.c.Protocol())
	assert.Empty(t, r.c.schedule.Active())
	assert.Equal(t, msgs.DriveCommand{}, r.out.lastDrive())

	r.tick()
	assert.Equal(t, "WAITING", r.out.states[len(r.out.states)-1])
	assert.Equal(t, "WAITING", r.c.Snapshot().State)

	r.c.HandleJoystick(msgs.Joystick{Linear: 0.05, Angular: 0.5})
	assert.Equal(t, msgs.DriveCommand{Angular: 0.5}, r.out.lastDrive())

	// Events that only matter to the autonomous controller are ignored.
	r.c.HandleTargets(markers(3, 3))
	r.c.HandleObstacle(msgs.ObstacleBlocked)
	assert.Equal(t, ProtocolNone, r.c.Protocol())

	r.c.HandleMode(msgs.ModeAutonomousAlt)
	r.c.HandleJoystick(msgs.Joystick{Linear: 1})
	assert.Equal(t, msgs.DriveCommand{}, r.out.lastDrive(), "joystick ignored in autonomous mode")
	assert.Equal(t, ProtocolFirstBoot, r.c.Protocol())
}

func TestStateEmittedOnChange(t *testing.T) {
	r := newRig(t, nil)
	r.activate(geom.Pose2D{})
	r.tick()
	r.tick()

	assert.Equal(t, []string{"SEEK_GOAL"}, r.out.states)
}

func TestStartPoseFollowsTransform(t *testing.T) {
	r := newRig(t, nil)
	r.c.HandleMapPose(geom.Pose2D{X: 5, Y: 5, Heading: math.Pi / 2})
	r.activate(geom.Pose2D{})
	require.InDelta(t, 5.0, r.c.mapStart.X, eps)

	// Moved one metre in the local frame, one and a half in the map frame.
	r.c.HandleLocalPose(geom.Pose2D{X: 1})
	r.c.HandleMapPose(geom.Pose2D{X: 5, Y: 6.5, Heading: math.Pi / 2})
	r.tick()

	home := r.c.HomeEstimate()
	assert.InDelta(t, -0.5, home.X, 1e-9)
	assert.InDelta(t, 0.0, home.Y, 1e-9)
	assert.False(t, r.c.transformErr)

	// Stale samples keep the last good start pose.
	r.clock.Advance(2 * time.Second)
	r.tick()
	assert.True(t, r.c.transformErr)
	assert.InDelta(t, -0.5, r.c.HomeEstimate().X, 1e-9)
}

func TestFrameTransformer(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("waits for both streams", func(t *testing.T) {
		f := NewFrameTransformer(time.Second)
		f.UpdateLocal(geom.Pose2D{}, at)
		_, err := f.MapToLocal(geom.Pose2D{}, at)
		assert.ErrorIs(t, err, ErrTransformUnavailable)
	})

	t.Run("rotates and translates", func(t *testing.T) {
		f := NewFrameTransformer(time.Second)
		f.UpdateLocal(geom.Pose2D{X: 1, Y: 1, Heading: math.Pi / 2}, at)
		f.UpdateMap(geom.Pose2D{}, at)

		got, err := f.MapToLocal(geom.Pose2D{X: 1}, at.Add(500*time.Millisecond))
		require.NoError(t, err)
		assert.InDelta(t, 1.0, got.X, 1e-9)
		assert.InDelta(t, 2.0, got.Y, 1e-9)
		assert.InDelta(t, math.Pi/2, got.Heading, 1e-9)
	})

	t.Run("rejects stale samples", func(t *testing.T) {
		f := NewFrameTransformer(time.Second)
		f.UpdateLocal(geom.Pose2D{}, at.Add(2*time.Second))
		f.UpdateMap(geom.Pose2D{}, at)

		_, err := f.MapToLocal(geom.Pose2D{}, at.Add(2*time.Second))
		require.ErrorIs(t, err, ErrTransformUnavailable)
		assert.Contains(t, err.Error(), "map pose")
	})
}

func TestSonarFeedsObstacleHandling(t *testing.T) {
	r := newRig(t, nil)
	r.activate(geom.Pose2D{})

	r.c.HandleSonar(msgs.SonarRanges{Left: 3, Center: 0.05, Right: 3})
	assert.Equal(t, ProtocolObstacleAvoid, r.c.Protocol())
	assert.True(t, r.c.blocked)
}

func TestHeartbeat(t *testing.T) {
	r := newRig(t, nil)
	r.c.Heartbeat()
	assert.Equal(t, []string{"forager online"}, r.out.status)
}

func TestSnapshot(t *testing.T) {
	r := newRig(t, nil)
	r.activate(geom.Pose2D{X: 1})
	r.c.HandleObstacle(msgs.ObstacleRight)

	s := r.c.Snapshot()
	assert.Equal(t, "AUTONOMOUS", s.Mode)
	assert.Equal(t, "SEEK_GOAL", s.State)
	assert.Equal(t, "obstacle-avoid", s.Protocol)
	assert.Equal(t, geom.Pose2D{X: 1}, s.Pose)
	assert.True(t, s.Obstacle)
	assert.Equal(t, []string{"obstacle-cooldown"}, s.Timers)
	assert.InDelta(t, 1.0, s.Search.Radius, eps)
}

type chanObserver struct{ ch chan Snapshot }

func (o chanObserver) Observe(s Snapshot) {
	select {
	case o.ch <- s:
	default:
	}
}

func TestLoopRun(t *testing.T) {
	r := newRig(t, nil)
	obs := chanObserver{ch: make(chan Snapshot, 64)}
	loop := NewLoop(r.c, 16, obs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	require.True(t, loop.Post(LocalPoseEvent{Pose: geom.Pose2D{X: 2}}))
	require.True(t, loop.Post(ModeEvent{Mode: msgs.ModeAutonomous}))

	var last Snapshot
	require.Eventually(t, func() bool {
		r.clock.Advance(100 * time.Millisecond)
		for {
			select {
			case s := <-obs.ch:
				last = s
				if s.Mode == "AUTONOMOUS" && s.Pose.X == 2 {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "SEEK_GOAL", last.State)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, msgs.DriveCommand{}, r.out.lastDrive(), "loop stops the rover on exit")

	stats := loop.Stats()
	assert.Equal(t, uint64(2), stats.Events)
	assert.Positive(t, stats.Ticks)
}

func TestLoopPostDropsWhenFull(t *testing.T) {
	r := newRig(t, nil)
	loop := NewLoop(r.c, 1)

	assert.True(t, loop.Post(ModeEvent{Mode: msgs.ModeAutonomous}))
	assert.False(t, loop.Post(ModeEvent{Mode: msgs.ModeManual}))
	assert.Equal(t, uint64(1), loop.Stats().Dropped)
}
