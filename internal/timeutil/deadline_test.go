package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeadline_StartIsIdempotentWhileArmed(t *testing.T) {
	t0 := time.Unix(100, 0)
	d := NewDeadline("cooldown", 10*time.Second)

	assert.True(t, d.Start(t0))
	assert.False(t, d.Start(t0.Add(5*time.Second)), "second Start must keep the first deadline")

	due, ok := d.Due()
	require.True(t, ok)
	assert.Equal(t, t0.Add(10*time.Second), due)
	assert.False(t, d.Expired(t0.Add(9*time.Second)))
	assert.True(t, d.Expired(t0.Add(10*time.Second)))
}

func TestDeadline_RestartResets(t *testing.T) {
	t0 := time.Unix(100, 0)
	d := NewDeadline("cooldown", 10*time.Second)
	d.Start(t0)
	d.Restart(t0.Add(5 * time.Second))

	assert.False(t, d.Expired(t0.Add(10*time.Second)))
	assert.True(t, d.Expired(t0.Add(15*time.Second)))
}

func TestDeadline_Stop(t *testing.T) {
	d := NewDeadline("x", time.Second)
	assert.False(t, d.Stop())
	d.Start(time.Unix(0, 0))
	assert.True(t, d.Active())
	assert.True(t, d.Stop())
	assert.False(t, d.Active())
	assert.False(t, d.Expired(time.Unix(10, 0)))
}

func TestSchedule_Fire(t *testing.T) {
	t0 := time.Unix(0, 0)
	var s Schedule
	var fired []string

	a := s.Add(NewDeadline("a", time.Second), func(time.Time) { fired = append(fired, "a") })
	var b *Deadline
	b = s.Add(NewDeadline("b", 2*time.Second), func(now time.Time) {
		fired = append(fired, "b")
		b.Start(now) // re-arm from inside the callback
	})
	c := s.Add(NewDeadline("c", time.Second), func(time.Time) { fired = append(fired, "c") })

	a.Start(t0)
	b.Start(t0)
	c.Start(t0)

	next, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, t0.Add(time.Second), next)

	t.Run("expired only", func(t *testing.T) {
		n := s.Fire(t0.Add(time.Second))
		assert.Equal(t, 2, n)
		assert.Equal(t, []string{"a", "c"}, fired)
		assert.Equal(t, []string{"b"}, s.Active())
	})

	t.Run("callback may re-arm", func(t *testing.T) {
		fired = nil
		n := s.Fire(t0.Add(2 * time.Second))
		assert.Equal(t, 1, n)
		assert.Equal(t, []string{"b"}, fired)
		assert.True(t, b.Active())
	})

	t.Run("stopped by earlier callback", func(t *testing.T) {
		var s2 Schedule
		var second *Deadline
		first := s2.Add(NewDeadline("first", time.Second), func(time.Time) { second.Stop() })
		second = s2.Add(NewDeadline("second", time.Second), func(time.Time) { t.Fatal("second fired") })
		first.Start(t0)
		second.Start(t0)
		assert.Equal(t, 1, s2.Fire(t0.Add(time.Second)))
	})

	s.StopAll()
	_, ok = s.Next()
	assert.False(t, ok)
}
