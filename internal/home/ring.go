// Package home estimates where the home zone is from noisy sightings.
//
// All estimators here are bounded ring buffers whose mean is recomputed
// over the valid entries on every write. Sample rates are low (one per
// centering or per search leg), so the O(capacity) recompute is fine.
package home

import (
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/forager/internal/geom"
)

// RingAverage is a bounded ring buffer of 2D points with a running mean.
// The mean covers the first Len() entries until the buffer wraps, then all
// of them.
type RingAverage struct {
	xs, ys  []float64
	next    int
	wrapped bool
	mean    geom.Pose2D
}

// NewRingAverage returns an empty buffer holding at most capacity samples.
func NewRingAverage(capacity int) *RingAverage {
	if capacity < 1 {
		capacity = 1
	}
	return &RingAverage{
		xs: make([]float64, capacity),
		ys: make([]float64, capacity),
	}
}

// Add writes p at the current index, advances the index and recomputes
// the mean. Heading is ignored.
func (r *RingAverage) Add(p geom.Pose2D) geom.Pose2D {
	r.xs[r.next] = p.X
	r.ys[r.next] = p.Y
	r.next++
	if r.next == len(r.xs) {
		r.next = 0
		r.wrapped = true
	}

	n := r.Len()
	r.mean = geom.Pose2D{
		X: stat.Mean(r.xs[:n], nil),
		Y: stat.Mean(r.ys[:n], nil),
	}
	return r.mean
}

// Mean returns the average of the valid entries, or the zero pose when empty.
func (r *RingAverage) Mean() geom.Pose2D { return r.mean }

// Len is the number of valid entries.
func (r *RingAverage) Len() int {
	if r.wrapped {
		return len(r.xs)
	}
	return r.next
}

// Cap is the buffer capacity.
func (r *RingAverage) Cap() int { return len(r.xs) }

// WriteIndex is the slot the next sample goes into.
func (r *RingAverage) WriteIndex() int { return r.next }

// Wrapped reports whether the buffer has been filled at least once.
func (r *RingAverage) Wrapped() bool { return r.wrapped }

// Reset empties the buffer.
func (r *RingAverage) Reset() {
	r.next = 0
	r.wrapped = false
	r.mean = geom.Pose2D{}
}
