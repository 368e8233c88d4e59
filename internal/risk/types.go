package risk

// Dimension names one scoring axis.
type Dimension string

const (
	DimensionType          Dimension = "type"
	DimensionLocation      Dimension = "location"
	DimensionAge           Dimension = "age"
	DimensionSize          Dimension = "size"
	DimensionActivity      Dimension = "activity"
	DimensionReversibility Dimension = "reversibility"
	DimensionSensitivity   Dimension = "sensitivity"
	DimensionContext       Dimension = "context"
	DimensionPredictive    Dimension = "predictive"
)

// Dimensions lists every axis in reporting order.
var Dimensions = []Dimension{
	DimensionType,
	DimensionLocation,
	DimensionAge,
	DimensionSize,
	DimensionActivity,
	DimensionReversibility,
	DimensionSensitivity,
	DimensionContext,
	DimensionPredictive,
}

// hintable dimensions are supplied externally rather than derived from metadata.
var hintable = map[Dimension]bool{
	DimensionActivity:      true,
	DimensionReversibility: true,
	DimensionSensitivity:   true,
	DimensionContext:       true,
	DimensionPredictive:    true,
}

// Tier is a risk band over confidence.
type Tier string

const (
	TierCritical Tier = "CRITICAL"
	TierHigh     Tier = "HIGH"
	TierMedium   Tier = "MEDIUM"
	TierLow      Tier = "LOW"
)

// Action is a recommended disposition for a file.
type Action string

const (
	ActionDeleteImmediate Action = "DELETE_IMMEDIATE"
	ActionReviewManual    Action = "REVIEW_MANUAL"
	ActionKeepActive      Action = "KEEP_ACTIVE"
	ActionMoveCorrect     Action = "MOVE_CORRECT"
	ActionBackupCloud     Action = "BACKUP_CLOUD"
	ActionCompress        Action = "COMPRESS"
)

// ParseAction accepts the canonical action names.
func ParseAction(value string) (Action, bool) {
	switch Action(value) {
	case ActionDeleteImmediate, ActionReviewManual, ActionKeepActive,
		ActionMoveCorrect, ActionBackupCloud, ActionCompress:
		return Action(value), true
	}
	return "", false
}

// DimensionScores holds one value in [0,1] per dimension.
type DimensionScores map[Dimension]float64

// Assessment is the scorer output for one file.
type Assessment struct {
	Scores     DimensionScores `json:"scores"`
	Confidence float64         `json:"confidence"`
	Tier       Tier            `json:"tier"`
	Action     Action          `json:"action"`
	// Degraded lists dimensions that fell back to the neutral value because
	// their input was unavailable.
	Degraded []Dimension `json:"degraded,omitempty"`
}

// TierFor maps confidence to its band. The bands partition [0,1]; a value
// exactly on a boundary belongs to the higher band.
func TierFor(confidence float64) Tier {
	switch {
	case confidence < 0.5:
		return TierCritical
	case confidence < 0.7:
		return TierHigh
	case confidence < 0.85:
		return TierMedium
	default:
		return TierLow
	}
}
