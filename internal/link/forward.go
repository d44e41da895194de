package link

import (
	"context"
	"errors"

	"github.com/banshee-data/forager/internal/rover"
)

// Poster accepts decoded events without blocking.
type Poster interface {
	Post(e rover.Event) bool
}

// ForwardStats counts what Forward did with each line.
type ForwardStats struct {
	Posted    int
	Dropped   int
	Malformed int
	Unknown   int
}

// Forward decodes lines until ctx is done or lines is closed and posts the
// events to p. Bad lines are logged and skipped.
func Forward(ctx context.Context, lines <-chan string, p Poster) ForwardStats {
	var st ForwardStats
	for {
		select {
		case <-ctx.Done():
			return st
		case line, ok := <-lines:
			if !ok {
				return st
			}
			e, err := Decode([]byte(line))
			switch {
			case errors.Is(err, ErrUnknownMessage):
				st.Unknown++
				continue
			case err != nil:
				st.Malformed++
				logf("dropping line %q: %v", line, err)
				continue
			}
			if p.Post(e) {
				st.Posted++
			} else {
				st.Dropped++
			}
		}
	}
}
