package rover

import (
	"time"

	"github.com/banshee-data/forager/internal/geom"
	"github.com/banshee-data/forager/internal/manipulator"
	"github.com/banshee-data/forager/internal/msgs"
)

// Grasp is the item pickup collaborator.
type Grasp interface {
	SelectTarget(obs []msgs.Observation) (manipulator.PickupResult, bool)
	AttemptPickup(blocked bool) manipulator.PickupResult
	Reset()
}

// Dropoff is the delivery collaborator.
type Dropoff interface {
	SetTargetsSeen(count, left, right int)
	SetCenterDistance(d float64)
	SetLocations(home, current geom.Pose2D, elapsed time.Duration)
	State() manipulator.DropoffResult
	InFinalApproach() bool
	Reset()
}

// Outputs receives everything the controller commands.
type Outputs interface {
	Drive(cmd msgs.DriveCommand)
	FingerAngle(rad float64)
	WristAngle(rad float64)
	// State is called with the state name only when it changes.
	State(name string)
	// Info carries operator-facing log lines.
	Info(msg string)
}

// StatusOutput is implemented by outputs that accept the liveness heartbeat.
type StatusOutput interface {
	Status(msg string)
}

// TeeOutputs fans every command out to each output in order.
type TeeOutputs []Outputs

func (t TeeOutputs) Drive(cmd msgs.DriveCommand) {
	for _, o := range t {
		o.Drive(cmd)
	}
}

func (t TeeOutputs) FingerAngle(rad float64) {
	for _, o := range t {
		o.FingerAngle(rad)
	}
}

func (t TeeOutputs) WristAngle(rad float64) {
	for _, o := range t {
		o.WristAngle(rad)
	}
}

func (t TeeOutputs) State(name string) {
	for _, o := range t {
		o.State(name)
	}
}

func (t TeeOutputs) Info(msg string) {
	for _, o := range t {
		o.Info(msg)
	}
}

// Status forwards to the outputs that accept it.
func (t TeeOutputs) Status(msg string) {
	for _, o := range t {
		if s, ok := o.(StatusOutput); ok {
			s.Status(msg)
		}
	}
}

// NopOutputs discards everything.
type NopOutputs struct{}

func (NopOutputs) Drive(msgs.DriveCommand) {}
func (NopOutputs) FingerAngle(float64)     {}
func (NopOutputs) WristAngle(float64)      {}
func (NopOutputs) State(string)            {}
func (NopOutputs) Info(string)             {}
