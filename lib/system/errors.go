package system

import "errors"

var (
	// ErrNotRoot is returned when an operation requires root privileges
	ErrNotRoot = errors.New("operation requires root")

	// ErrCommandFailed is returned when an external command exits non-zero
	ErrCommandFailed = errors.New("command failed")
)
