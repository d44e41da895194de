// Package link is the wire codec between the base board and the controller.
// Every message is one JSON object per line with its kind in "t".
package link

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/banshee-data/forager/internal/geom"
	"github.com/banshee-data/forager/internal/msgs"
	"github.com/banshee-data/forager/internal/rover"
)

// Inbound message kinds.
const (
	KindOdometry = "odom"
	KindMapPose  = "map"
	KindObstacle = "obstacle"
	KindSonar    = "sonar"
	KindTargets  = "targets"
	KindJoystick = "joy"
	KindMode     = "mode"
)

var (
	ErrUnknownMessage = errors.New("unknown message kind")
	ErrMalformed      = errors.New("malformed message")
)

type inbound struct {
	Kind string `json:"t"`

	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`

	Code   *int   `json:"code"`
	Signal string `json:"signal"`

	Left   float64 `json:"left"`
	Center float64 `json:"center"`
	Right  float64 `json:"right"`

	Detections []msgs.Detection `json:"detections"`

	Linear  float64 `json:"linear"`
	Angular float64 `json:"angular"`

	Mode *int `json:"mode"`
}

// Decode parses one inbound line into a controller event.
func Decode(line []byte) (rover.Event, error) {
	var m inbound
	if err := json.Unmarshal(line, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch m.Kind {
	case KindOdometry:
		return rover.LocalPoseEvent{Pose: geom.Pose2D{X: m.X, Y: m.Y, Heading: m.Theta}}, nil
	case KindMapPose:
		return rover.MapPoseEvent{Pose: geom.Pose2D{X: m.X, Y: m.Y, Heading: m.Theta}}, nil
	case KindObstacle:
		sig, err := obstacleSignal(m)
		if err != nil {
			return nil, err
		}
		return rover.ObstacleEvent{Signal: sig}, nil
	case KindSonar:
		return rover.SonarEvent{Ranges: msgs.SonarRanges{Left: m.Left, Center: m.Center, Right: m.Right}}, nil
	case KindTargets:
		return rover.TargetsEvent{Detections: m.Detections}, nil
	case KindJoystick:
		return rover.JoystickEvent{Axes: msgs.Joystick{Linear: m.Linear, Angular: m.Angular}}, nil
	case KindMode:
		if m.Mode == nil || *m.Mode < 0 || *m.Mode > int(msgs.ModeAutonomousAlt) {
			return nil, fmt.Errorf("%w: mode %v", ErrMalformed, m.Mode)
		}
		return rover.ModeEvent{Mode: msgs.Mode(*m.Mode)}, nil
	case "":
		return nil, fmt.Errorf("%w: missing \"t\"", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, m.Kind)
	}
}

func obstacleSignal(m inbound) (msgs.ObstacleSignal, error) {
	if m.Code != nil {
		if *m.Code < 0 || *m.Code > int(msgs.ObstacleBlocked) {
			return 0, fmt.Errorf("%w: obstacle code %d", ErrMalformed, *m.Code)
		}
		return msgs.ObstacleSignal(*m.Code), nil
	}
	sig, err := msgs.ParseObstacleSignal(m.Signal)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return sig, nil
}
