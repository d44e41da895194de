// Package rover is the behaviour controller of a foraging rover: it turns
// pose, obstacle and camera events into drive and gripper commands.
//
// All state lives in a RoverContext. Handlers and the periodic Tick run to
// completion one at a time on the Loop goroutine, so nothing in here is
// locked. Deferred steps of multi-stage manoeuvres are timeutil.Deadline
// values that the loop polls through FireTimers.
package rover

import (
	"fmt"
	"time"

	"github.com/banshee-data/forager/internal/geom"
	"github.com/banshee-data/forager/internal/home"
	"github.com/banshee-data/forager/internal/monitoring"
	"github.com/banshee-data/forager/internal/msgs"
	"github.com/banshee-data/forager/internal/obstacle"
	"github.com/banshee-data/forager/internal/search"
	"github.com/banshee-data/forager/internal/timeutil"
)

var logf = monitoring.Tagged("Rover")

type firstBootPhase int

const (
	firstBootDone firstBootPhase = iota
	firstBootWaiting
	firstBootForward
	firstBootTurning
)

type timers struct {
	fbWait, fbForward, fbTurn *timeutil.Deadline
	obstacleCooldown          *timeutil.Deadline
	targetAvoid               *timeutil.Deadline
	reverse, turn180          *timeutil.Deadline
	centeringHold, centerLost *timeutil.Deadline
	gripperHold, afterPickup  *timeutil.Deadline
}

// RoverContext is the controller state shared by every handler.
type RoverContext struct {
	params  Params
	clock   timeutil.Clock
	out     Outputs
	grasp   Grasp
	dropoff Dropoff

	search       *search.Pattern
	home         *home.Estimator
	blend        *home.Blend
	localization *home.LocalizationFilter
	transform    *FrameTransformer
	sonar        *obstacle.Fusion

	schedule timeutil.Schedule
	timers   timers

	mode      msgs.Mode
	state     State
	stateName string
	protocol  Protocol

	pose       geom.Pose2D
	mapPose    geom.Pose2D
	havePose   bool
	haveMap    bool
	goal       geom.Pose2D
	lastDrive  msgs.DriveCommand
	lastFinger float64
	lastWrist  float64

	activatedAt   time.Time
	goalChangedAt time.Time
	interestStart time.Time
	initialised   bool

	mapStart       geom.Pose2D
	startLocal     geom.Pose2D
	haveStartLocal bool
	transformErr   bool

	// sub-protocol progress
	firstBoot       firstBootPhase
	avoiding        bool
	backingUp       bool
	centeringAnchor geom.Pose2D

	// sensor latches
	obstacleLatched bool
	blocked         bool
	markersVisible  bool
	lastTally       msgs.Tally

	homeFound     bool
	itemDetected  bool
	carrying      bool
	pickupSettled bool
	delivered     int
}

// NewContext builds a controller in SEEK_GOAL with every protocol idle.
func NewContext(params Params, clock timeutil.Clock, out Outputs, grasp Grasp, dropoff Dropoff) *RoverContext {
	if out == nil {
		out = NopOutputs{}
	}
	now := clock.Now()
	c := &RoverContext{
		params:        params,
		clock:         clock,
		out:           out,
		grasp:         grasp,
		dropoff:       dropoff,
		search:        search.New(params.Search),
		home:          home.NewEstimator(params.HomeHistory),
		blend:         home.NewBlend(params.HomeHistory),
		localization:  home.NewLocalizationFilter(params.LocalisationHistory),
		transform:     NewFrameTransformer(params.TransformStaleness),
		sonar:         obstacle.NewFusion(params.Sonar),
		state:         StateSeekGoal,
		firstBoot:     firstBootDone,
		pickupSettled: true,
		activatedAt:   now,
		goalChangedAt: now,
		interestStart: now,
	}
	c.registerTimers()
	return c
}

func (c *RoverContext) registerTimers() {
	p := c.params
	s := &c.schedule
	t := &c.timers
	t.fbWait = s.Add(timeutil.NewDeadline("first-boot-wait", p.FirstBootWait), c.onFirstBootWait)
	t.fbForward = s.Add(timeutil.NewDeadline("first-boot-forward", p.FirstBootForward), c.onFirstBootForward)
	t.fbTurn = s.Add(timeutil.NewDeadline("first-boot-turn", p.FirstBootTurn), c.onFirstBootTurn)
	t.obstacleCooldown = s.Add(timeutil.NewDeadline("obstacle-cooldown", p.ObstacleCooldown), c.onObstacleCooldown)
	t.targetAvoid = s.Add(timeutil.NewDeadline("target-avoid", p.TargetAvoidDuration), c.onTargetAvoidDone)
	t.reverse = s.Add(timeutil.NewDeadline("reverse", p.ReverseDuration), c.onReverseDone)
	t.turn180 = s.Add(timeutil.NewDeadline("turn-180", p.Turn180Duration), c.onTurn180Done)
	t.centeringHold = s.Add(timeutil.NewDeadline("centering-hold", p.CenteringHold), func(time.Time) {})
	t.centerLost = s.Add(timeutil.NewDeadline("centering-lost", p.CenteringLost), c.onCenteringLost)
	t.gripperHold = s.Add(timeutil.NewDeadline("gripper-reset", p.GripperResetHold), func(time.Time) {})
	t.afterPickup = s.Add(timeutil.NewDeadline("after-pickup", p.AfterPickupSettle), func(time.Time) {
		c.pickupSettled = true
	})
}

// FireTimers runs the callbacks of every deferred timer due at now.
func (c *RoverContext) FireTimers(now time.Time) int {
	return c.schedule.Fire(now)
}

// NextTimer is the earliest armed deadline.
func (c *RoverContext) NextTimer() (time.Time, bool) {
	return c.schedule.Next()
}

// State is the current top-level state.
func (c *RoverContext) State() State { return c.state }

// Protocol is the sub-protocol holding control.
func (c *RoverContext) Protocol() Protocol { return c.protocol }

// Goal is a copy of the navigation goal.
func (c *RoverContext) Goal() geom.Pose2D { return c.goal }

// Pose is a copy of the latest local pose.
func (c *RoverContext) Pose() geom.Pose2D { return c.pose }

// HomeEstimate is the best known home location: the averaged samples
// once any exist, otherwise the transformed start pose, otherwise the
// local origin.
func (c *RoverContext) HomeEstimate() geom.Pose2D {
	if c.home.Known() {
		return c.home.Estimate()
	}
	if c.haveStartLocal {
		return geom.Pose2D{X: c.startLocal.X, Y: c.startLocal.Y}
	}
	return geom.Pose2D{}
}

func (c *RoverContext) setGoal(g geom.Pose2D) {
	g.Heading = geom.NormalizeAngle(g.Heading)
	c.goal = g
	c.goalChangedAt = c.clock.Now()
}

func (c *RoverContext) drive(linear, angular float64) {
	cmd := msgs.DriveCommand{Linear: linear, Angular: angular}
	c.lastDrive = cmd
	c.out.Drive(cmd)
}

func (c *RoverContext) stop() { c.drive(0, 0) }

func (c *RoverContext) finger(rad float64) {
	c.lastFinger = rad
	c.out.FingerAngle(rad)
}

func (c *RoverContext) wrist(rad float64) {
	c.lastWrist = rad
	c.out.WristAngle(rad)
}

func (c *RoverContext) info(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	logf("%s", msg)
	c.out.Info(msg)
}

func (c *RoverContext) emitState(name string) {
	if name == c.stateName {
		return
	}
	c.stateName = name
	c.out.State(name)
}

// mirror is -1 when turn directions flip: on the alternate sweep, and
// while carrying if configured.
func (c *RoverContext) mirror() float64 {
	m := 1.0
	if c.search.Alternating() {
		m = -m
	}
	if c.carrying && c.params.MirrorWhenCarrying {
		m = -m
	}
	return m
}
