package install

import "github.com/Johan-Liebert1/bootc/lib/image"

// Options are the installer flags shared by both install flows.
type Options struct {
	// ComposefsNative selects the composefs-native backend.
	ComposefsNative bool

	// Bootloader overrides the bootloader backend, e.g. "systemd".
	Bootloader string

	// SourceImgref installs from this image instead of the container the
	// installer runs as.
	SourceImgref string

	// TargetImgref is the image the installed system tracks for updates.
	TargetImgref string

	// TargetTransport is the transport for TargetImgref.
	TargetTransport image.Transport

	// Kargs are extra kernel arguments baked into the boot entry.
	// The flag is repeatable.
	Kargs []string
}

// ToDiskOptions drive "bootc install to-disk".
type ToDiskOptions struct {
	Options

	// Device is the host path of the target block device or disk image.
	Device string

	// Filesystem is the root filesystem type.
	Filesystem string

	// Wipe discards any existing partition table on the device.
	Wipe bool

	// GenericImage produces an image not tied to the current machine.
	GenericImage bool

	// ViaLoopback installs to a regular file through a loop device.
	ViaLoopback bool
}

// ToFilesystemOptions drive "bootc install to-filesystem".
type ToFilesystemOptions struct {
	Options

	// Root is the host path of the mounted target root filesystem.
	Root string
}
