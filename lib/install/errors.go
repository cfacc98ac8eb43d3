package install

import "errors"

var (
	// ErrNoDevice is returned when to-disk is invoked without a target device
	ErrNoDevice = errors.New("no target device")

	// ErrNoRoot is returned when to-filesystem is invoked without a target root
	ErrNoRoot = errors.New("no target root")

	// ErrNoBootloader is returned when the bootloader binary is missing
	ErrNoBootloader = errors.New("bootloader binary not found")
)
