package disk

import "errors"

var (
	// ErrInvalidLayout is returned when a partition table fails validation
	ErrInvalidLayout = errors.New("invalid partition layout")

	// ErrNotAttached is returned when operating on a detached loop device
	ErrNotAttached = errors.New("loop device not attached")
)
