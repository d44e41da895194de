// Package manipulator holds the grasp and drop-off collaborators the
// behaviour controller delegates to, and the result types they report.
//
// The controller only sees the request/result contract. The controllers
// in this package are simple timed reference implementations good enough
// to run the rover end to end; a smarter grasp or delivery routine can
// replace either one without touching the controller.
package manipulator

import (
	"github.com/banshee-data/forager/internal/geom"
	"github.com/banshee-data/forager/internal/msgs"
)

// Gripper angles in radians.
const (
	FingerClosed = 0.0
	FingerOpen   = 1.57
	WristUp      = 0.0
	WristCarry   = 0.6
	WristDown    = 1.25
)

// PickupResult is one step of a grasp attempt. Nil angles mean "leave the
// actuator where it is".
type PickupResult struct {
	Drive    msgs.DriveCommand
	Finger   *float64
	Wrist    *float64
	PickedUp bool
	GiveUp   bool
}

// DropoffResult is one step of a delivery.
type DropoffResult struct {
	Drive  msgs.DriveCommand
	Finger *float64
	Wrist  *float64
	// Reset means the item has been released and the controller should go
	// back to searching.
	Reset bool
	// ContinueDriving means the controller should drive to Goal under its
	// own state machine rather than apply Drive.
	ContinueDriving bool
	Goal            *geom.Pose2D
	// TimerFired asks the controller to restart its goal-change clock.
	TimerFired bool
}

func angle(v float64) *float64 { return &v }
