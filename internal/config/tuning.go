package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the root configuration for the behaviour controller.
// Every field is optional: the Get* accessors fall back to the built-in
// default, so partial files are safe. Durations are Go duration strings
// such as "2.5s"; angles are in degrees.
type TuningConfig struct {
	// Drive loop
	TickInterval       *string  `json:"tick_interval,omitempty"`
	RotateTolerance    *float64 `json:"rotate_tolerance,omitempty"`
	HeadingTolerance   *float64 `json:"heading_tolerance,omitempty"`
	GoalTolerance      *float64 `json:"goal_tolerance,omitempty"`
	SearchVelocity     *float64 `json:"search_velocity,omitempty"`
	ReverseSpeed       *float64 `json:"reverse_speed,omitempty"`
	ReturnToSearch     *string  `json:"return_to_search_delay,omitempty"`
	StartDelay         *string  `json:"start_delay,omitempty"`
	ItemInterestDelay  *string  `json:"item_interest_delay,omitempty"`
	TeleopDeadband     *float64 `json:"teleop_deadband,omitempty"`
	HeartbeatInterval  *string  `json:"heartbeat_interval,omitempty"`
	TransformStaleness *string  `json:"transform_staleness,omitempty"`

	// Detection
	HomeMarkerID *int     `json:"home_marker_id,omitempty"`
	ItemID       *int     `json:"item_id,omitempty"`
	CameraOffset *float64 `json:"camera_offset,omitempty"`

	// Manoeuvre geometry
	HomeOffsetDistance     *float64 `json:"home_offset_distance,omitempty"`
	ObstacleResumeDistance *float64 `json:"obstacle_resume_distance,omitempty"`
	ObstacleResumeAngleDeg *float64 `json:"obstacle_resume_angle_deg,omitempty"`
	ObstacleTurnRate       *float64 `json:"obstacle_turn_rate,omitempty"`
	ObstacleTurnSign       *int     `json:"obstacle_turn_sign,omitempty"`
	ObstacleResumeSign     *int     `json:"obstacle_resume_sign,omitempty"`
	MirrorWhenCarrying     *bool    `json:"mirror_when_carrying,omitempty"`
	TargetAvoidDistance    *float64 `json:"target_avoid_distance,omitempty"`
	TargetAvoidAngleDeg    *float64 `json:"target_avoid_angle_deg,omitempty"`
	TargetResumeAngleDeg   *float64 `json:"target_resume_angle_deg,omitempty"`

	// Centering
	CenteringVisibility   *int     `json:"centering_visibility_threshold,omitempty"`
	CenteringSkew         *int     `json:"centering_skew_threshold,omitempty"`
	CenteringReverseSpeed *float64 `json:"centering_reverse_speed,omitempty"`
	CenteringTurnRate     *float64 `json:"centering_turn_rate,omitempty"`
	CenteringBlindReverse *float64 `json:"centering_blind_reverse_speed,omitempty"`

	// First boot dispersal
	FirstBootEnabled  *bool    `json:"first_boot_enabled,omitempty"`
	FirstBootWait     *string  `json:"first_boot_wait,omitempty"`
	FirstBootForward  *string  `json:"first_boot_forward,omitempty"`
	FirstBootTurn     *string  `json:"first_boot_turn,omitempty"`
	FirstBootDistance *float64 `json:"first_boot_distance,omitempty"`

	// Deferred timers
	ObstacleCooldown    *string `json:"obstacle_cooldown,omitempty"`
	TargetAvoidDuration *string `json:"target_avoid_duration,omitempty"`
	ReverseDuration     *string `json:"reverse_duration,omitempty"`
	Turn180Duration     *string `json:"turn_180_duration,omitempty"`
	CenteringHold       *string `json:"centering_hold,omitempty"`
	CenteringLost       *string `json:"centering_lost,omitempty"`
	GripperResetHold    *string `json:"gripper_reset_hold,omitempty"`
	AfterPickupSettle   *string `json:"after_pickup_settle,omitempty"`

	// Search pattern
	SearchVertices      *int     `json:"search_vertices,omitempty"`
	SearchInitialRadius *float64 `json:"search_initial_radius,omitempty"`
	SearchRingGrowth    *float64 `json:"search_ring_growth,omitempty"`
	SearchMaxRadius     *float64 `json:"search_max_radius,omitempty"`
	SearchStartAngleDeg *float64 `json:"search_start_angle_deg,omitempty"`

	// Estimators
	HomeHistory         *int `json:"home_history,omitempty"`
	LocalisationHistory *int `json:"localisation_history,omitempty"`

	// Gripper cruise posture
	CruiseFinger *float64 `json:"cruise_finger,omitempty"`
	CruiseWrist  *float64 `json:"cruise_wrist,omitempty"`

	// Sonar fusion
	SonarCollision   *float64 `json:"sonar_collision_distance,omitempty"`
	SonarTooCloseMin *float64 `json:"sonar_too_close_min,omitempty"`
	SonarTooCloseMax *float64 `json:"sonar_too_close_max,omitempty"`
	SonarBlocked     *float64 `json:"sonar_blocked_distance,omitempty"`
	SonarConfirm     *string  `json:"sonar_confirm,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches the current directory and its parents. Panics if the file
// cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *TuningConfig) Validate() error {
	durations := map[string]*string{
		"tick_interval":          c.TickInterval,
		"return_to_search_delay": c.ReturnToSearch,
		"start_delay":            c.StartDelay,
		"item_interest_delay":    c.ItemInterestDelay,
		"heartbeat_interval":     c.HeartbeatInterval,
		"transform_staleness":    c.TransformStaleness,
		"first_boot_wait":        c.FirstBootWait,
		"first_boot_forward":     c.FirstBootForward,
		"first_boot_turn":        c.FirstBootTurn,
		"obstacle_cooldown":      c.ObstacleCooldown,
		"target_avoid_duration":  c.TargetAvoidDuration,
		"reverse_duration":       c.ReverseDuration,
		"turn_180_duration":      c.Turn180Duration,
		"centering_hold":         c.CenteringHold,
		"centering_lost":         c.CenteringLost,
		"gripper_reset_hold":     c.GripperResetHold,
		"after_pickup_settle":    c.AfterPickupSettle,
		"sonar_confirm":          c.SonarConfirm,
	}
	for name, v := range durations {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, *v)
		}
	}
	if c.TickInterval != nil && c.GetTickInterval() <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", *c.TickInterval)
	}

	if c.RotateTolerance != nil && *c.RotateTolerance <= 0 {
		return fmt.Errorf("rotate_tolerance must be positive, got %f", *c.RotateTolerance)
	}
	if c.HeadingTolerance != nil && *c.HeadingTolerance <= 0 {
		return fmt.Errorf("heading_tolerance must be positive, got %f", *c.HeadingTolerance)
	}
	if c.ObstacleTurnSign != nil && *c.ObstacleTurnSign != 1 && *c.ObstacleTurnSign != -1 {
		return fmt.Errorf("obstacle_turn_sign must be 1 or -1, got %d", *c.ObstacleTurnSign)
	}
	if c.ObstacleResumeSign != nil && *c.ObstacleResumeSign != 1 && *c.ObstacleResumeSign != -1 {
		return fmt.Errorf("obstacle_resume_sign must be 1 or -1, got %d", *c.ObstacleResumeSign)
	}
	if c.CenteringSkew != nil && *c.CenteringSkew < 1 {
		return fmt.Errorf("centering_skew_threshold must be at least 1, got %d", *c.CenteringSkew)
	}
	if c.SearchVertices != nil && *c.SearchVertices < 3 {
		return fmt.Errorf("search_vertices must be at least 3, got %d", *c.SearchVertices)
	}
	if c.SearchInitialRadius != nil && *c.SearchInitialRadius <= 0 {
		return fmt.Errorf("search_initial_radius must be positive, got %f", *c.SearchInitialRadius)
	}
	if c.GetSearchMaxRadius() < c.GetSearchInitialRadius() {
		return fmt.Errorf("search_max_radius %f is below search_initial_radius %f",
			c.GetSearchMaxRadius(), c.GetSearchInitialRadius())
	}
	if c.HomeHistory != nil && *c.HomeHistory < 1 {
		return fmt.Errorf("home_history must be positive, got %d", *c.HomeHistory)
	}
	if c.LocalisationHistory != nil && *c.LocalisationHistory < 1 {
		return fmt.Errorf("localisation_history must be positive, got %d", *c.LocalisationHistory)
	}
	if c.GetSonarTooCloseMin() > c.GetSonarTooCloseMax() {
		return fmt.Errorf("sonar_too_close_min %f exceeds sonar_too_close_max %f",
			c.GetSonarTooCloseMin(), c.GetSonarTooCloseMax())
	}
	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// GetTickInterval returns the state machine tick period.
func (c *TuningConfig) GetTickInterval() time.Duration {
	return durationOr(c.TickInterval, 100*time.Millisecond)
}

// GetRotateTolerance returns the heading error above which the robot turns in place.
func (c *TuningConfig) GetRotateTolerance() float64 { return floatOr(c.RotateTolerance, 0.5) }

// GetHeadingTolerance returns the final heading error accepted on arrival.
func (c *TuningConfig) GetHeadingTolerance() float64 { return floatOr(c.HeadingTolerance, 0.1) }

// GetGoalTolerance returns the distance at which a goal counts as reached.
func (c *TuningConfig) GetGoalTolerance() float64 { return floatOr(c.GoalTolerance, 0.05) }

func (c *TuningConfig) GetSearchVelocity() float64 { return floatOr(c.SearchVelocity, 0.2) }
func (c *TuningConfig) GetReverseSpeed() float64   { return floatOr(c.ReverseSpeed, 0.2) }

// GetReturnToSearchDelay returns the cooldown after a goal change before
// a new search waypoint may be requested.
func (c *TuningConfig) GetReturnToSearchDelay() time.Duration {
	return durationOr(c.ReturnToSearch, 5*time.Second)
}

func (c *TuningConfig) GetStartDelay() time.Duration {
	return durationOr(c.StartDelay, time.Second)
}

func (c *TuningConfig) GetItemInterestDelay() time.Duration {
	return durationOr(c.ItemInterestDelay, 5*time.Second)
}

func (c *TuningConfig) GetTeleopDeadband() float64 { return floatOr(c.TeleopDeadband, 0.1) }

func (c *TuningConfig) GetHeartbeatInterval() time.Duration {
	return durationOr(c.HeartbeatInterval, time.Second)
}

// GetTransformStaleness returns how old a pose sample may be before the
// map to local transform is reported unavailable.
func (c *TuningConfig) GetTransformStaleness() time.Duration {
	return durationOr(c.TransformStaleness, time.Second)
}

func (c *TuningConfig) GetHomeMarkerID() int     { return intOr(c.HomeMarkerID, 256) }
func (c *TuningConfig) GetItemID() int           { return intOr(c.ItemID, 0) }
func (c *TuningConfig) GetCameraOffset() float64 { return floatOr(c.CameraOffset, 0.020) }
func (c *TuningConfig) GetHomeOffsetDistance() float64 {
	return floatOr(c.HomeOffsetDistance, 0.95)
}

func (c *TuningConfig) GetObstacleResumeDistance() float64 {
	return floatOr(c.ObstacleResumeDistance, 0.55)
}

func (c *TuningConfig) GetObstacleResumeAngleDeg() float64 {
	return floatOr(c.ObstacleResumeAngleDeg, 30)
}

func (c *TuningConfig) GetObstacleTurnRate() float64 { return floatOr(c.ObstacleTurnRate, 0.2) }

// GetObstacleTurnSign returns the in-place turn direction while avoiding
// an obstacle on a non-alternating sweep: -1 turns right, 1 turns left.
func (c *TuningConfig) GetObstacleTurnSign() int { return intOr(c.ObstacleTurnSign, -1) }

// GetObstacleResumeSign returns the side of the resume heading offset on a
// non-alternating sweep: 1 is counter-clockwise.
func (c *TuningConfig) GetObstacleResumeSign() int { return intOr(c.ObstacleResumeSign, 1) }

// GetMirrorWhenCarrying reports whether avoidance directions flip while an
// item is held.
func (c *TuningConfig) GetMirrorWhenCarrying() bool { return boolOr(c.MirrorWhenCarrying, true) }

func (c *TuningConfig) GetTargetAvoidDistance() float64 {
	return floatOr(c.TargetAvoidDistance, 0.45)
}

func (c *TuningConfig) GetTargetAvoidAngleDeg() float64 {
	return floatOr(c.TargetAvoidAngleDeg, 90)
}

func (c *TuningConfig) GetTargetResumeAngleDeg() float64 {
	return floatOr(c.TargetResumeAngleDeg, 30)
}

// GetCenteringVisibility returns how many markers must be in view before
// centering may complete.
func (c *TuningConfig) GetCenteringVisibility() int { return intOr(c.CenteringVisibility, 5) }

// GetCenteringSkew returns the left/right count difference at which the
// side with fewer markers is ignored.
func (c *TuningConfig) GetCenteringSkew() int { return intOr(c.CenteringSkew, 5) }

func (c *TuningConfig) GetCenteringReverseSpeed() float64 {
	return floatOr(c.CenteringReverseSpeed, 0.2)
}

func (c *TuningConfig) GetCenteringTurnRate() float64 { return floatOr(c.CenteringTurnRate, 0.35) }

func (c *TuningConfig) GetCenteringBlindReverse() float64 {
	return floatOr(c.CenteringBlindReverse, 0.25)
}

func (c *TuningConfig) GetFirstBootEnabled() bool { return boolOr(c.FirstBootEnabled, true) }

func (c *TuningConfig) GetFirstBootWait() time.Duration {
	return durationOr(c.FirstBootWait, 10*time.Second)
}

func (c *TuningConfig) GetFirstBootForward() time.Duration {
	return durationOr(c.FirstBootForward, 10*time.Second)
}

func (c *TuningConfig) GetFirstBootTurn() time.Duration {
	return durationOr(c.FirstBootTurn, 10*time.Second)
}

func (c *TuningConfig) GetFirstBootDistance() float64 { return floatOr(c.FirstBootDistance, 0.45) }

func (c *TuningConfig) GetObstacleCooldown() time.Duration {
	return durationOr(c.ObstacleCooldown, 10*time.Second)
}

func (c *TuningConfig) GetTargetAvoidDuration() time.Duration {
	return durationOr(c.TargetAvoidDuration, 4*time.Second)
}

func (c *TuningConfig) GetReverseDuration() time.Duration {
	return durationOr(c.ReverseDuration, 2*time.Second)
}

func (c *TuningConfig) GetTurn180Duration() time.Duration {
	return durationOr(c.Turn180Duration, 2500*time.Millisecond)
}

func (c *TuningConfig) GetCenteringHold() time.Duration {
	return durationOr(c.CenteringHold, 4*time.Second)
}

// GetCenteringLost is how long centering waits without a marker sighting
// before giving up and resuming the search.
func (c *TuningConfig) GetCenteringLost() time.Duration {
	return durationOr(c.CenteringLost, 4*time.Second)
}

func (c *TuningConfig) GetGripperResetHold() time.Duration {
	return durationOr(c.GripperResetHold, 2*time.Second)
}

func (c *TuningConfig) GetAfterPickupSettle() time.Duration {
	return durationOr(c.AfterPickupSettle, 2*time.Second)
}

func (c *TuningConfig) GetSearchVertices() int { return intOr(c.SearchVertices, 9) }

func (c *TuningConfig) GetSearchInitialRadius() float64 {
	return floatOr(c.SearchInitialRadius, 1.0)
}

func (c *TuningConfig) GetSearchRingGrowth() float64 { return floatOr(c.SearchRingGrowth, 0.5) }
func (c *TuningConfig) GetSearchMaxRadius() float64  { return floatOr(c.SearchMaxRadius, 8.0) }

func (c *TuningConfig) GetSearchStartAngleDeg() float64 {
	return floatOr(c.SearchStartAngleDeg, 0)
}

func (c *TuningConfig) GetHomeHistory() int         { return intOr(c.HomeHistory, 500) }
func (c *TuningConfig) GetLocalisationHistory() int { return intOr(c.LocalisationHistory, 500) }

func (c *TuningConfig) GetCruiseFinger() float64 { return floatOr(c.CruiseFinger, 0) }
func (c *TuningConfig) GetCruiseWrist() float64  { return floatOr(c.CruiseWrist, 0.6) }

func (c *TuningConfig) GetSonarCollision() float64   { return floatOr(c.SonarCollision, 0.6) }
func (c *TuningConfig) GetSonarTooCloseMin() float64 { return floatOr(c.SonarTooCloseMin, 0.25) }
func (c *TuningConfig) GetSonarTooCloseMax() float64 { return floatOr(c.SonarTooCloseMax, 0.45) }
func (c *TuningConfig) GetSonarBlocked() float64     { return floatOr(c.SonarBlocked, 0.12) }

func (c *TuningConfig) GetSonarConfirm() time.Duration {
	return durationOr(c.SonarConfirm, 250*time.Millisecond)
}
