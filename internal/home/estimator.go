package home

import "github.com/banshee-data/forager/internal/geom"

// Estimator is the averaged home-zone location.
type Estimator struct {
	samples *RingAverage
	last    geom.Pose2D
}

// NewEstimator returns an estimator averaging up to capacity samples.
func NewEstimator(capacity int) *Estimator {
	return &Estimator{samples: NewRingAverage(capacity)}
}

// RecordSample adds a derived home location and returns the new estimate.
func (e *Estimator) RecordSample(p geom.Pose2D) geom.Pose2D {
	e.last = p
	return e.samples.Add(p)
}

// Estimate is the mean of the recorded samples.
func (e *Estimator) Estimate() geom.Pose2D { return e.samples.Mean() }

// Known reports whether at least one sample has been recorded.
func (e *Estimator) Known() bool { return e.samples.Len() > 0 }

// Count is the number of samples currently averaged.
func (e *Estimator) Count() int { return e.samples.Len() }

// Last is the most recently recorded sample.
func (e *Estimator) Last() geom.Pose2D { return e.last }

// Blend averages the map-frame and local-frame pose streams over their own
// histories and exposes the midpoint of the two means. Both streams are
// sampled together, once per search waypoint.
type Blend struct {
	mapPoses   *RingAverage
	localPoses *RingAverage
}

// NewBlend returns a blend with capacity samples per stream.
func NewBlend(capacity int) *Blend {
	return &Blend{
		mapPoses:   NewRingAverage(capacity),
		localPoses: NewRingAverage(capacity),
	}
}

// Record adds one sample to each stream.
func (b *Blend) Record(mapPose, localPose geom.Pose2D) {
	b.mapPoses.Add(mapPose)
	b.localPoses.Add(localPose)
}

// Midpoint is halfway between the two stream means.
func (b *Blend) Midpoint() geom.Pose2D {
	m, l := b.mapPoses.Mean(), b.localPoses.Mean()
	return geom.Pose2D{X: (m.X + l.X) / 2, Y: (m.Y + l.Y) / 2}
}

// Count is the number of samples per stream.
func (b *Blend) Count() int { return b.mapPoses.Len() }

// LocalizationFilter smooths the raw map-frame pose history. Its mean is
// captured once after the start delay as the map-frame start pose.
type LocalizationFilter struct {
	poses   *RingAverage
	heading []float64
}

// NewLocalizationFilter returns a filter over capacity samples.
func NewLocalizationFilter(capacity int) *LocalizationFilter {
	f := &LocalizationFilter{poses: NewRingAverage(capacity)}
	f.heading = make([]float64, 0, f.poses.Cap())
	return f
}

// Add records a raw pose.
func (f *LocalizationFilter) Add(p geom.Pose2D) {
	idx := f.poses.WriteIndex()
	f.poses.Add(p)
	if len(f.heading) < f.poses.Cap() {
		f.heading = append(f.heading, p.Heading)
	} else {
		f.heading[idx] = p.Heading
	}
}

// Smoothed is the mean position with the circular mean of the headings.
func (f *LocalizationFilter) Smoothed() geom.Pose2D {
	p := f.poses.Mean()
	p.Heading = circularMean(f.heading)
	return p
}

// Count is the number of poses averaged.
func (f *LocalizationFilter) Count() int { return f.poses.Len() }
