package gc

import "errors"

var (
	// ErrInconsistentState is returned when the booted deployment itself
	// would be collected
	ErrInconsistentState = errors.New("inconsistent state")
)
