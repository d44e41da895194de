package rover

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/forager/internal/geom"
	"github.com/banshee-data/forager/internal/manipulator"
	"github.com/banshee-data/forager/internal/monitoring"
	"github.com/banshee-data/forager/internal/msgs"
	"github.com/banshee-data/forager/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

type recorder struct {
	drives  []msgs.DriveCommand
	fingers []float64
	wrists  []float64
	states  []string
	infos   []string
	status  []string
}

func (r *recorder) Drive(cmd msgs.DriveCommand) { r.drives = append(r.drives, cmd) }
func (r *recorder) FingerAngle(v float64)       { r.fingers = append(r.fingers, v) }
func (r *recorder) WristAngle(v float64)        { r.wrists = append(r.wrists, v) }
func (r *recorder) State(name string)           { r.states = append(r.states, name) }
func (r *recorder) Info(msg string)             { r.infos = append(r.infos, msg) }
func (r *recorder) Status(msg string)           { r.status = append(r.status, msg) }

func (r *recorder) lastDrive() msgs.DriveCommand {
	if len(r.drives) == 0 {
		return msgs.DriveCommand{}
	}
	return r.drives[len(r.drives)-1]
}

type fakeGrasp struct {
	selectOK bool
	next     manipulator.PickupResult
	attempts int
	resets   int
	blocked  []bool
}

func (g *fakeGrasp) SelectTarget([]msgs.Observation) (manipulator.PickupResult, bool) {
	open := manipulator.FingerOpen
	return manipulator.PickupResult{Finger: &open}, g.selectOK
}

func (g *fakeGrasp) AttemptPickup(blocked bool) manipulator.PickupResult {
	g.attempts++
	g.blocked = append(g.blocked, blocked)
	return g.next
}

func (g *fakeGrasp) Reset() { g.resets++ }

type fakeDropoff struct {
	next     manipulator.DropoffResult
	final    bool
	seen     [3]int
	distance float64
	elapsed  time.Duration
	resets   int
}

func (d *fakeDropoff) SetTargetsSeen(count, left, right int) { d.seen = [3]int{count, left, right} }
func (d *fakeDropoff) SetCenterDistance(v float64)           { d.distance = v }
func (d *fakeDropoff) SetLocations(_, _ geom.Pose2D, elapsed time.Duration) {
	d.elapsed = elapsed
}
func (d *fakeDropoff) State() manipulator.DropoffResult { return d.next }
func (d *fakeDropoff) InFinalApproach() bool            { return d.final }
func (d *fakeDropoff) Reset()                           { d.resets++ }

type rig struct {
	t       *testing.T
	clock   *timeutil.MockClock
	out     *recorder
	grasp   *fakeGrasp
	dropoff *fakeDropoff
	c       *RoverContext
}

// newRig builds a controller with first-boot dispersal off unless tune
// turns it back on.
func newRig(t *testing.T, tune func(p *Params)) *rig {
	t.Helper()
	p := DefaultParams()
	p.FirstBootEnabled = false
	if tune != nil {
		tune(&p)
	}
	r := &rig{
		t:       t,
		clock:   timeutil.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		out:     &recorder{},
		grasp:   &fakeGrasp{selectOK: true},
		dropoff: &fakeDropoff{},
	}
	r.c = NewContext(p, r.clock, r.out, r.grasp, r.dropoff)
	return r
}

// activate switches to autonomous mode at pose and runs the first tick
// after the start delay.
func (r *rig) activate(pose geom.Pose2D) {
	r.t.Helper()
	r.c.HandleLocalPose(pose)
	r.c.HandleMode(msgs.ModeAutonomous)
	r.clock.Advance(1100 * time.Millisecond)
	r.tick()
	require.True(r.t, r.c.initialised)
}

func (r *rig) advance(d time.Duration) {
	r.clock.Advance(d)
	r.c.FireTimers(r.clock.Now())
}

func (r *rig) tick() {
	r.c.FireTimers(r.clock.Now())
	r.c.Tick()
}

func markers(left, right int) []msgs.Detection {
	var out []msgs.Detection
	for i := 0; i < left; i++ {
		out = append(out, msgs.Detection{ID: 256, X: -0.1, Z: 0.5})
	}
	for i := 0; i < right; i++ {
		out = append(out, msgs.Detection{ID: 256, X: 0.1, Z: 0.5})
	}
	return out
}

func items(left, right int) []msgs.Detection {
	var out []msgs.Detection
	for i := 0; i < left; i++ {
		out = append(out, msgs.Detection{ID: 0, X: -0.2, Z: 0.4})
	}
	for i := 0; i < right; i++ {
		out = append(out, msgs.Detection{ID: 0, X: 0.2, Z: 0.4})
	}
	return out
}
