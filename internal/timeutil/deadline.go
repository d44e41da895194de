package timeutil

import "time"

// Deadline is a one-shot deferred timer expressed as a deadline value.
// It never fires on its own: the owner polls it, usually through a
// Schedule, from the same goroutine that arms it.
type Deadline struct {
	name     string
	duration time.Duration
	due      time.Time
	armed    bool
}

// NewDeadline returns a disarmed deadline that expires d after Start.
func NewDeadline(name string, d time.Duration) *Deadline {
	return &Deadline{name: name, duration: d}
}

// Name identifies the deadline in logs.
func (t *Deadline) Name() string { return t.name }

// Duration is the configured delay.
func (t *Deadline) Duration() time.Duration { return t.duration }

// Start arms the deadline unless it is already armed, in which case the
// existing deadline is kept. It reports whether the deadline was armed
// by this call.
func (t *Deadline) Start(now time.Time) bool {
	if t.armed {
		return false
	}
	t.due = now.Add(t.duration)
	t.armed = true
	return true
}

// Restart arms the deadline afresh from now.
func (t *Deadline) Restart(now time.Time) {
	t.due = now.Add(t.duration)
	t.armed = true
}

// Stop disarms the deadline. It reports whether it was armed.
func (t *Deadline) Stop() bool {
	was := t.armed
	t.armed = false
	return was
}

// Active reports whether the deadline is armed and has not fired.
func (t *Deadline) Active() bool { return t.armed }

// Due returns the expiry time of an armed deadline.
func (t *Deadline) Due() (time.Time, bool) {
	return t.due, t.armed
}

// Expired reports whether an armed deadline has been reached.
func (t *Deadline) Expired(now time.Time) bool {
	return t.armed && !now.Before(t.due)
}

type scheduled struct {
	deadline *Deadline
	fire     func(now time.Time)
}

// Schedule owns a fixed set of deadlines and their callbacks.
type Schedule struct {
	entries []scheduled
}

// Add registers d with the callback to run when it expires and returns d.
// Callbacks run in registration order.
func (s *Schedule) Add(d *Deadline, fire func(now time.Time)) *Deadline {
	s.entries = append(s.entries, scheduled{deadline: d, fire: fire})
	return d
}

// Fire runs the callback of every expired deadline and returns how many
// fired. Each deadline is disarmed before its callback runs, so a
// callback may re-arm its own deadline. A deadline stopped by an earlier
// callback in the same pass does not fire.
func (s *Schedule) Fire(now time.Time) int {
	n := 0
	for _, e := range s.entries {
		if !e.deadline.Expired(now) {
			continue
		}
		e.deadline.Stop()
		n++
		e.fire(now)
	}
	return n
}

// StopAll disarms every registered deadline.
func (s *Schedule) StopAll() {
	for _, e := range s.entries {
		e.deadline.Stop()
	}
}

// Next returns the earliest armed deadline.
func (s *Schedule) Next() (time.Time, bool) {
	var next time.Time
	found := false
	for _, e := range s.entries {
		due, ok := e.deadline.Due()
		if !ok {
			continue
		}
		if !found || due.Before(next) {
			next = due
			found = true
		}
	}
	return next, found
}

// Active lists the names of armed deadlines in registration order.
func (s *Schedule) Active() []string {
	var out []string
	for _, e := range s.entries {
		if e.deadline.Active() {
			out = append(out, e.deadline.Name())
		}
	}
	return out
}
