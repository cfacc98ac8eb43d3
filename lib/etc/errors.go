package etc

import "errors"

var (
	// ErrVerityMismatch is returned when fs-verity is enabled on one side
	// of a compared file but not the other
	ErrVerityMismatch = errors.New("file gained or lost fs-verity")
)
