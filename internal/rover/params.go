package rover

import (
	"time"

	"github.com/banshee-data/forager/internal/config"
	"github.com/banshee-data/forager/internal/geom"
	"github.com/banshee-data/forager/internal/obstacle"
	"github.com/banshee-data/forager/internal/search"
)

// Params are the controller's tuning values. Angles are radians.
type Params struct {
	TickInterval       time.Duration
	RotateTolerance    float64
	HeadingTolerance   float64
	GoalTolerance      float64
	SearchVelocity     float64
	ReverseSpeed       float64
	ReturnToSearch     time.Duration
	StartDelay         time.Duration
	ItemInterestDelay  time.Duration
	TeleopDeadband     float64
	HeartbeatInterval  time.Duration
	TransformStaleness time.Duration

	HomeMarkerID int
	ItemID       int
	CameraOffset float64

	HomeOffsetDistance     float64
	ObstacleResumeDistance float64
	ObstacleResumeAngle    float64
	ObstacleTurnRate       float64
	ObstacleTurnSign       float64
	ObstacleResumeSign     float64
	MirrorWhenCarrying     bool
	TargetAvoidDistance    float64
	TargetAvoidAngle       float64
	TargetResumeAngle      float64

	CenteringVisibility   int
	CenteringSkew         int
	CenteringReverseSpeed float64
	CenteringTurnRate     float64
	CenteringBlindReverse float64

	FirstBootEnabled  bool
	FirstBootWait     time.Duration
	FirstBootForward  time.Duration
	FirstBootTurn     time.Duration
	FirstBootDistance float64

	ObstacleCooldown    time.Duration
	TargetAvoidDuration time.Duration
	ReverseDuration     time.Duration
	Turn180Duration     time.Duration
	CenteringHold       time.Duration
	CenteringLost       time.Duration
	GripperResetHold    time.Duration
	AfterPickupSettle   time.Duration

	HomeHistory         int
	LocalisationHistory int

	CruiseFinger float64
	CruiseWrist  float64

	Search search.Config
	Sonar  obstacle.Config
}

// DefaultParams returns the built-in tuning.
func DefaultParams() Params {
	return ParamsFromTuning(config.EmptyTuningConfig())
}

// ParamsFromTuning converts a tuning file into controller parameters.
func ParamsFromTuning(cfg *config.TuningConfig) Params {
	return Params{
		TickInterval:       cfg.GetTickInterval(),
		RotateTolerance:    cfg.GetRotateTolerance(),
		HeadingTolerance:   cfg.GetHeadingTolerance(),
		GoalTolerance:      cfg.GetGoalTolerance(),
		SearchVelocity:     cfg.GetSearchVelocity(),
		ReverseSpeed:       cfg.GetReverseSpeed(),
		ReturnToSearch:     cfg.GetReturnToSearchDelay(),
		StartDelay:         cfg.GetStartDelay(),
		ItemInterestDelay:  cfg.GetItemInterestDelay(),
		TeleopDeadband:     cfg.GetTeleopDeadband(),
		HeartbeatInterval:  cfg.GetHeartbeatInterval(),
		TransformStaleness: cfg.GetTransformStaleness(),

		HomeMarkerID: cfg.GetHomeMarkerID(),
		ItemID:       cfg.GetItemID(),
		CameraOffset: cfg.GetCameraOffset(),

		HomeOffsetDistance:     cfg.GetHomeOffsetDistance(),
		ObstacleResumeDistance: cfg.GetObstacleResumeDistance(),
		ObstacleResumeAngle:    geom.Degrees(cfg.GetObstacleResumeAngleDeg()),
		ObstacleTurnRate:       cfg.GetObstacleTurnRate(),
		ObstacleTurnSign:       float64(cfg.GetObstacleTurnSign()),
		ObstacleResumeSign:     float64(cfg.GetObstacleResumeSign()),
		MirrorWhenCarrying:     cfg.GetMirrorWhenCarrying(),
		TargetAvoidDistance:    cfg.GetTargetAvoidDistance(),
		TargetAvoidAngle:       geom.Degrees(cfg.GetTargetAvoidAngleDeg()),
		TargetResumeAngle:      geom.Degrees(cfg.GetTargetResumeAngleDeg()),

		CenteringVisibility:   cfg.GetCenteringVisibility(),
		CenteringSkew:         cfg.GetCenteringSkew(),
		CenteringReverseSpeed: cfg.GetCenteringReverseSpeed(),
		CenteringTurnRate:     cfg.GetCenteringTurnRate(),
		CenteringBlindReverse: cfg.GetCenteringBlindReverse(),

		FirstBootEnabled:  cfg.GetFirstBootEnabled(),
		FirstBootWait:     cfg.GetFirstBootWait(),
		FirstBootForward:  cfg.GetFirstBootForward(),
		FirstBootTurn:     cfg.GetFirstBootTurn(),
		FirstBootDistance: cfg.GetFirstBootDistance(),

		ObstacleCooldown:    cfg.GetObstacleCooldown(),
		TargetAvoidDuration: cfg.GetTargetAvoidDuration(),
		ReverseDuration:     cfg.GetReverseDuration(),
		Turn180Duration:     cfg.GetTurn180Duration(),
		CenteringHold:       cfg.GetCenteringHold(),
		CenteringLost:       cfg.GetCenteringLost(),
		GripperResetHold:    cfg.GetGripperResetHold(),
		AfterPickupSettle:   cfg.GetAfterPickupSettle(),

		HomeHistory:         cfg.GetHomeHistory(),
		LocalisationHistory: cfg.GetLocalisationHistory(),

		CruiseFinger: cfg.GetCruiseFinger(),
		CruiseWrist:  cfg.GetCruiseWrist(),

		Search: search.Config{
			Vertices:      cfg.GetSearchVertices(),
			InitialRadius: cfg.GetSearchInitialRadius(),
			RingGrowth:    cfg.GetSearchRingGrowth(),
			MaxRadius:     cfg.GetSearchMaxRadius(),
			StartAngle:    geom.Degrees(cfg.GetSearchStartAngleDeg()),
		},
		Sonar: obstacle.Config{
			Collision:   cfg.GetSonarCollision(),
			TooCloseMin: cfg.GetSonarTooCloseMin(),
			TooCloseMax: cfg.GetSonarTooCloseMax(),
			Blocked:     cfg.GetSonarBlocked(),
			Confirm:     cfg.GetSonarConfirm(),
		},
	}
}
