// Package msgs defines the typed messages exchanged between the rover base
// board and the behaviour controller.
package msgs

import (
	"fmt"
	"strings"

	"github.com/banshee-data/forager/internal/geom"
)

// Mode is the operator-selected driving mode.
type Mode uint8

const (
	ModeStopped Mode = iota
	ModeManual
	ModeAutonomous
	ModeAutonomousAlt
)

// Autonomous reports whether the controller owns the drive train.
func (m Mode) Autonomous() bool {
	return m == ModeAutonomous || m == ModeAutonomousAlt
}

func (m Mode) String() string {
	switch m {
	case ModeStopped:
		return "STOPPED"
	case ModeManual:
		return "MANUAL"
	case ModeAutonomous, ModeAutonomousAlt:
		return "AUTONOMOUS"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ObstacleSignal is the coded output of the range-sensor fusion.
// The numeric values match the codes sent on the wire.
type ObstacleSignal uint8

const (
	ObstacleNone ObstacleSignal = iota
	ObstacleRight
	ObstacleLeft
	ObstacleTooClose
	ObstacleBlocked
)

func (s ObstacleSignal) String() string {
	switch s {
	case ObstacleNone:
		return "NONE"
	case ObstacleRight:
		return "RIGHT"
	case ObstacleLeft:
		return "LEFT"
	case ObstacleTooClose:
		return "TOO_CLOSE"
	case ObstacleBlocked:
		return "BLOCKED"
	default:
		return fmt.Sprintf("ObstacleSignal(%d)", uint8(s))
	}
}

// ParseObstacleSignal accepts either the wire code or the signal name.
func ParseObstacleSignal(v string) (ObstacleSignal, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "0", "NONE":
		return ObstacleNone, nil
	case "1", "RIGHT":
		return ObstacleRight, nil
	case "2", "LEFT":
		return ObstacleLeft, nil
	case "3", "TOO_CLOSE":
		return ObstacleTooClose, nil
	case "4", "BLOCKED":
		return ObstacleBlocked, nil
	default:
		return ObstacleNone, fmt.Errorf("unknown obstacle signal %q", v)
	}
}

// Side is the half of the camera image a detection falls in.
type Side uint8

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideRight {
		return "RIGHT"
	}
	return "LEFT"
}

// Detection is one raw fiducial detection relative to the camera.
// Only the sign of X is used by the controller; Z is the forward range.
type Detection struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
}

// Observation is a classified detection.
type Observation struct {
	HomeMarker bool
	Side       Side
	Detection  Detection
}

// Classify splits detections into home markers and items. Detections with
// an id that is neither are dropped. offset is added to X before the side
// test to correct for the camera being mounted off-centre.
func Classify(dets []Detection, homeID, itemID int, offset float64) []Observation {
	out := make([]Observation, 0, len(dets))
	for _, d := range dets {
		if d.ID != homeID && d.ID != itemID {
			continue
		}
		side := SideLeft
		if d.X+offset > 0 {
			side = SideRight
		}
		out = append(out, Observation{HomeMarker: d.ID == homeID, Side: side, Detection: d})
	}
	return out
}

// Tally counts observations by class and side.
type Tally struct {
	Markers      int
	MarkersLeft  int
	MarkersRight int
	Items        int
	ItemsLeft    int
	ItemsRight   int
}

// Count tallies a classified batch.
func Count(obs []Observation) Tally {
	var t Tally
	for _, o := range obs {
		if o.HomeMarker {
			t.Markers++
			if o.Side == SideRight {
				t.MarkersRight++
			} else {
				t.MarkersLeft++
			}
			continue
		}
		t.Items++
		if o.Side == SideRight {
			t.ItemsRight++
		} else {
			t.ItemsLeft++
		}
	}
	return t
}

// DriveCommand is a differential drive request.
type DriveCommand struct {
	Linear  float64 `json:"linear"`
	Angular float64 `json:"angular"`
}

// Stop is the zero drive command.
var Stop = DriveCommand{}

// Joystick carries the operator's drive axes.
type Joystick struct {
	Linear  float64 `json:"linear"`
	Angular float64 `json:"angular"`
}

// SonarRanges are the three ultrasonic range readings in metres.
type SonarRanges struct {
	Left   float64 `json:"left"`
	Center float64 `json:"center"`
	Right  float64 `json:"right"`
}

// PoseFrame names the estimator a pose sample came from.
type PoseFrame uint8

const (
	// FrameLocal is the continuously-updating odometry estimate.
	FrameLocal PoseFrame = iota
	// FrameMap is the drift-corrected but delayed estimate.
	FrameMap
)

// PoseSample is a pose in one of the two frames.
type PoseSample struct {
	Frame PoseFrame
	Pose  geom.Pose2D
}
