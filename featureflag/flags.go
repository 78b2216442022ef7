package featureflag

type Flag string

const (
	// Visits every covered quad tree cell instead of skipping the cells whose
	// height mask does not overlap the query.
	FlagDisableMaskPruning Flag = "DISABLE_MASK_PRUNING"

	// Keeps every entity at its initial pose.
	FlagDisableMotion Flag = "DISABLE_MOTION"

	// Removes the websocket visibility stream endpoint.
	FlagDisableVisibilityStream Flag = "DISABLE_VISIBILITY_STREAM"
)
