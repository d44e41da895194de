// Package search generates the expanding ring sweep the rover drives
// around the home zone while looking for items.
//
// A ring is a regular polygon of Vertices points centred on the home
// estimate. Vertices are visited in order; issuing the last vertex of a
// ring completes it, which grows the radius for the next ring and flips
// the alternation flag so the next sweep runs the opposite way round.
package search

import (
	"math"

	"github.com/banshee-data/forager/internal/geom"
	"github.com/banshee-data/forager/internal/monitoring"
)

var logf = monitoring.Tagged("Search")

// Config shapes the ring pattern.
type Config struct {
	Vertices      int
	InitialRadius float64
	RingGrowth    float64
	MaxRadius     float64
	// StartAngle is the bearing of vertex 0 from the centre, in radians.
	StartAngle float64
}

// DefaultConfig is a nine-point ring starting one metre out.
func DefaultConfig() Config {
	return Config{
		Vertices:      9,
		InitialRadius: 1.0,
		RingGrowth:    0.5,
		MaxRadius:     8.0,
	}
}

// Waypoint is one issued search goal.
type Waypoint struct {
	Goal   geom.Pose2D
	Vertex int
	Radius float64
	// CompletedRing is set on the waypoint that finished a ring.
	CompletedRing bool
}

// State is a copy of the pattern's progress.
type State struct {
	RingIndex           int     `json:"ring_index"`
	Radius              float64 `json:"radius"`
	AccumulatedDistance float64 `json:"accumulated_distance"`
	Alternating         bool    `json:"alternating"`
	HasCompletedRing    bool    `json:"has_completed_ring"`
	RingsCompleted      int     `json:"rings_completed"`
}

// Pattern is the search waypoint generator. It is not safe for concurrent
// use; the controller owns it.
type Pattern struct {
	cfg    Config
	center geom.Pose2D

	next        int // vertex issued by the following Next
	last        int // last issued vertex, -1 before the first
	radius      float64
	alternating bool
	interrupted bool

	completed      bool
	ringsCompleted int
	distance       float64
}

// New returns a pattern centred on the origin.
func New(cfg Config) *Pattern {
	if cfg.Vertices < 3 {
		cfg.Vertices = 3
	}
	if cfg.InitialRadius <= 0 {
		cfg.InitialRadius = DefaultConfig().InitialRadius
	}
	if cfg.MaxRadius < cfg.InitialRadius {
		cfg.MaxRadius = cfg.InitialRadius
	}
	return &Pattern{cfg: cfg, last: -1, radius: cfg.InitialRadius}
}

// SetCenter moves the ring centre. Progress round the ring is kept.
func (p *Pattern) SetCenter(c geom.Pose2D) {
	p.center = geom.Pose2D{X: c.X, Y: c.Y}
}

// Center is the current ring centre.
func (p *Pattern) Center() geom.Pose2D { return p.center }

// NextWaypoint returns the next vertex of the current ring. After
// NoteInterruption it behaves like ResumeAfterInterruption against the last
// issued vertex.
func (p *Pattern) NextWaypoint(current geom.Pose2D) Waypoint {
	if p.interrupted {
		return p.ResumeAfterInterruption(current, p.vertex(p.lastOrZero()))
	}
	return p.issue(current, p.next)
}

// ResumeAfterInterruption picks the vertex nearest to where the rover now
// is on the ring instead of restarting it. The vertex just issued, or one
// sitting on lastGoal, is skipped in favour of the one after it.
func (p *Pattern) ResumeAfterInterruption(current, lastGoal geom.Pose2D) Waypoint {
	p.interrupted = false

	k := p.next
	if current.DistanceTo(p.center) > 1e-6 {
		k = p.nearestVertex(current)
	}
	if k == p.last || p.vertex(k).DistanceTo(lastGoal) < 1e-6 {
		k = (k + 1) % p.cfg.Vertices
	}
	logf("resuming at vertex %d of ring r=%.2f", k, p.radius)
	return p.issue(current, k)
}

// NoteInterruption makes the next NextWaypoint resume rather than continue.
func (p *Pattern) NoteInterruption() { p.interrupted = true }

// MarkRingComplete abandons the current ring and starts the next one
// from vertex 0.
func (p *Pattern) MarkRingComplete() {
	p.completeRing()
	p.next = 0
}

// ToggleAlternation mirrors the vertex ordering.
func (p *Pattern) ToggleAlternation() { p.alternating = !p.alternating }

// Alternating reports whether the mirrored ordering is in use.
func (p *Pattern) Alternating() bool { return p.alternating }

// CurrentRingIndex is the vertex most recently issued, 0 before the first.
func (p *Pattern) CurrentRingIndex() int { return p.lastOrZero() }

// CurrentLegDistance is the radius of the ring being swept.
func (p *Pattern) CurrentLegDistance() float64 { return p.radius }

// HasCompletedRing reports whether any ring has been completed.
func (p *Pattern) HasCompletedRing() bool { return p.completed }

// State returns a copy of the pattern's progress.
func (p *Pattern) State() State {
	return State{
		RingIndex:           p.lastOrZero(),
		Radius:              p.radius,
		AccumulatedDistance: p.distance,
		Alternating:         p.alternating,
		HasCompletedRing:    p.completed,
		RingsCompleted:      p.ringsCompleted,
	}
}

func (p *Pattern) issue(current geom.Pose2D, k int) Waypoint {
	v := p.vertex(k)
	goal := geom.Pose2D{X: v.X, Y: v.Y, Heading: current.BearingTo(v)}
	wp := Waypoint{Goal: goal, Vertex: k, Radius: p.radius}

	p.distance += current.DistanceTo(v)
	p.last = k
	p.next = k + 1
	if p.next >= p.cfg.Vertices {
		p.next = 0
		p.completeRing()
		wp.CompletedRing = true
	}
	return wp
}

func (p *Pattern) completeRing() {
	p.completed = true
	p.ringsCompleted++
	p.radius += p.cfg.RingGrowth
	if p.radius > p.cfg.MaxRadius {
		p.radius = p.cfg.InitialRadius
	}
	p.alternating = !p.alternating
	logf("ring %d complete, radius now %.2f alternating=%v", p.ringsCompleted, p.radius, p.alternating)
}

func (p *Pattern) step() float64 {
	s := 2 * math.Pi / float64(p.cfg.Vertices)
	if p.alternating {
		return -s
	}
	return s
}

func (p *Pattern) vertex(k int) geom.Pose2D {
	a := p.cfg.StartAngle + p.step()*float64(k)
	return geom.Pose2D{
		X: p.center.X + p.radius*math.Cos(a),
		Y: p.center.Y + p.radius*math.Sin(a),
	}
}

func (p *Pattern) nearestVertex(current geom.Pose2D) int {
	phi := p.center.BearingTo(current) - p.cfg.StartAngle
	if p.alternating {
		phi = -phi
	}
	rel := geom.NormalizeAnglePositive(phi)
	n := p.cfg.Vertices
	k := int(math.Round(rel/(2*math.Pi/float64(n)))) % n
	return k
}

func (p *Pattern) lastOrZero() int {
	if p.last < 0 {
		return 0
	}
	return p.last
}
