package manipulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/forager/internal/geom"
	"github.com/banshee-data/forager/internal/msgs"
	"github.com/banshee-data/forager/internal/timeutil"
)

func TestPickup_SelectsNearestItem(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c := NewPickupController(DefaultPickupConfig(), clock)

	_, ok := c.SelectTarget([]msgs.Observation{{HomeMarker: true}})
	assert.False(t, ok, "home markers are never targets")

	res, ok := c.SelectTarget([]msgs.Observation{
		{Detection: msgs.Detection{X: 0.2, Z: 0.8}},
		{Detection: msgs.Detection{X: -0.1, Z: 0.3}},
	})
	require.True(t, ok)
	require.NotNil(t, res.Finger)
	assert.Equal(t, FingerOpen, *res.Finger)
	assert.True(t, c.Active())

	// Steers towards the nearer item, which is on the left.
	step := c.AttemptPickup(false)
	assert.Equal(t, 0.15, step.Drive.Linear)
	assert.Greater(t, step.Drive.Angular, 0.0)
}

func TestPickup_GraspAndLift(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c := NewPickupController(DefaultPickupConfig(), clock)
	c.SelectTarget([]msgs.Observation{{Detection: msgs.Detection{Z: 0.2}}})

	res := c.AttemptPickup(true)
	require.NotNil(t, res.Finger)
	assert.Equal(t, FingerClosed, *res.Finger)

	clock.Advance(time.Second)
	res = c.AttemptPickup(true)
	require.NotNil(t, res.Wrist)
	assert.Equal(t, WristUp, *res.Wrist)

	res = c.AttemptPickup(true)
	assert.False(t, res.PickedUp)

	clock.Advance(time.Second)
	res = c.AttemptPickup(true)
	assert.True(t, res.PickedUp)
	assert.False(t, res.GiveUp)
}

func TestPickup_GivesUp(t *testing.T) {
	t.Run("nothing held after lift", func(t *testing.T) {
		clock := timeutil.NewMockClock(time.Unix(0, 0))
		c := NewPickupController(DefaultPickupConfig(), clock)
		c.SelectTarget([]msgs.Observation{{Detection: msgs.Detection{Z: 0.5}}})

		clock.Advance(4 * time.Second)
		c.AttemptPickup(false) // blind grasp
		clock.Advance(time.Second)
		c.AttemptPickup(false) // lift
		clock.Advance(time.Second)
		res := c.AttemptPickup(false)
		assert.True(t, res.GiveUp)
		assert.False(t, c.Active())
	})

	t.Run("no target", func(t *testing.T) {
		c := NewPickupController(DefaultPickupConfig(), timeutil.NewMockClock(time.Unix(0, 0)))
		assert.True(t, c.AttemptPickup(false).GiveUp)
	})

	t.Run("timeout", func(t *testing.T) {
		clock := timeutil.NewMockClock(time.Unix(0, 0))
		c := NewPickupController(DefaultPickupConfig(), clock)
		c.SelectTarget([]msgs.Observation{{Detection: msgs.Detection{Z: 0.5}}})
		clock.Advance(16 * time.Second)
		assert.True(t, c.AttemptPickup(false).GiveUp)
	})
}

func TestDropoff_Sequence(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c := NewDropoffController(DefaultDropoffConfig(), clock)
	home := geom.Pose2D{X: 3, Y: 0}

	// Far from home: hand a goal back to the controller.
	c.SetCenterDistance(3)
	c.SetLocations(home, geom.Pose2D{}, 10*time.Second)
	res := c.State()
	require.True(t, res.ContinueDriving)
	require.NotNil(t, res.Goal)
	assert.Equal(t, 3.0, res.Goal.X)
	assert.False(t, c.InFinalApproach())

	// Markers in view: steer on them.
	c.SetTargetsSeen(4, 3, 1)
	res = c.State()
	assert.True(t, c.InFinalApproach())
	assert.Greater(t, res.Drive.Angular, 0.0)

	// Markers pass under the camera.
	c.SetTargetsSeen(0, 0, 0)
	res = c.State()
	assert.True(t, res.TimerFired)

	clock.Advance(time.Second)
	res = c.State()
	require.NotNil(t, res.Finger)
	assert.Equal(t, FingerOpen, *res.Finger)

	clock.Advance(time.Second)
	c.State()
	res = c.State()
	assert.Less(t, res.Drive.Linear, 0.0, "backs out")

	clock.Advance(2 * time.Second)
	res = c.State()
	assert.True(t, res.Reset)

	c.Reset()
	assert.False(t, c.InFinalApproach())
}

func TestDropoff_SpinTimeout(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c := NewDropoffController(DefaultDropoffConfig(), clock)
	c.SetCenterDistance(0.2)

	res := c.State()
	assert.False(t, res.ContinueDriving)
	res = c.State()
	assert.Equal(t, 0.2, res.Drive.Angular)

	clock.Advance(10 * time.Second)
	res = c.State()
	assert.True(t, res.ContinueDriving)
}
