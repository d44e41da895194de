package rover

import (
	"time"

	"github.com/banshee-data/forager/internal/geom"
	"github.com/banshee-data/forager/internal/msgs"
	"github.com/banshee-data/forager/internal/search"
)

// Snapshot is a copy of the controller state for publication.
type Snapshot struct {
	Time        time.Time         `json:"time"`
	Mode        string            `json:"mode"`
	State       string            `json:"state"`
	Protocol    string            `json:"protocol"`
	Pose        geom.Pose2D       `json:"pose"`
	Goal        geom.Pose2D       `json:"goal"`
	Home        geom.Pose2D       `json:"home"`
	HomeFound   bool              `json:"home_found"`
	HomeSamples int               `json:"home_samples"`
	Carrying    bool              `json:"carrying"`
	Item        bool              `json:"item_detected"`
	Delivered   int               `json:"delivered"`
	Obstacle    bool              `json:"obstacle"`
	Markers     msgs.Tally        `json:"markers"`
	Drive       msgs.DriveCommand `json:"drive"`
	Search      search.State      `json:"search"`
	Timers      []string          `json:"timers"`
}

// Snapshot copies the current state.
func (c *RoverContext) Snapshot() Snapshot {
	state := c.state.String()
	if !c.mode.Autonomous() {
		state = stateWaiting
	}
	return Snapshot{
		Time:        c.clock.Now(),
		Mode:        c.mode.String(),
		State:       state,
		Protocol:    c.protocol.String(),
		Pose:        c.pose,
		Goal:        c.goal,
		Home:        c.HomeEstimate(),
		HomeFound:   c.homeFound,
		HomeSamples: c.home.Count(),
		Carrying:    c.carrying,
		Item:        c.itemDetected,
		Delivered:   c.delivered,
		Obstacle:    c.obstacleLatched,
		Markers:     c.lastTally,
		Drive:       c.lastDrive,
		Search:      c.search.State(),
		Timers:      c.schedule.Active(),
	}
}
