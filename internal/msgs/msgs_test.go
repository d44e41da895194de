package msgs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyAndCount(t *testing.T) {
	dets := []Detection{
		{ID: 256, X: -0.10},
		{ID: 256, X: -0.015}, // pushed right by the camera offset
		{ID: 256, X: 0.20},
		{ID: 0, X: -0.30},
		{ID: 0, X: 0.30},
		{ID: 7, X: 0.30},
	}

	obs := Classify(dets, 256, 0, 0.020)
	require.Len(t, obs, 5)

	got := Count(obs)
	assert.Equal(t, Tally{
		Markers:      3,
		MarkersLeft:  1,
		MarkersRight: 2,
		Items:        2,
		ItemsLeft:    1,
		ItemsRight:   1,
	}, got)
}

func TestParseObstacleSignal(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want ObstacleSignal
	}{
		{"0", ObstacleNone},
		{"right", ObstacleRight},
		{"2", ObstacleLeft},
		{"TOO_CLOSE", ObstacleTooClose},
		{" 4 ", ObstacleBlocked},
	} {
		got, err := ParseObstacleSignal(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseObstacleSignal("9")
	assert.Error(t, err)
}

func TestModeAutonomous(t *testing.T) {
	assert.False(t, ModeStopped.Autonomous())
	assert.False(t, ModeManual.Autonomous())
	assert.True(t, ModeAutonomous.Autonomous())
	assert.True(t, ModeAutonomousAlt.Autonomous())
	assert.Equal(t, "Mode(9)", Mode(9).String())
}
