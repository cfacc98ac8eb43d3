package config

import (
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/joho/godotenv"
)

type Config struct {
	// DataDir is where disk images and scratch state are kept.
	DataDir string

	// SourceImage is the bootc container image reference to install.
	SourceImage string

	// TargetImage is the image reference the installed system tracks for
	// updates. Empty means same as SourceImage.
	TargetImage string

	// TargetTransport selects how the installed system fetches TargetImage
	// (registry, containers-storage, oci, dir).
	TargetTransport string

	// ContainerEngine is the engine used to run the installer container.
	ContainerEngine string

	// BootloaderPath is the systemd-boot EFI binary copied onto the ESP.
	BootloaderPath string

	// TempDir overrides the scratch directory for image staging.
	TempDir string

	// DiskSize is the size of provisioned disk images.
	DiskSize datasize.ByteSize

	// Filesystem is the root filesystem type passed to the installer.
	Filesystem string
}

// Load loads configuration from environment variables
// Automatically loads .env file if present
func Load() *Config {
	// Try to load .env file (fail silently if not present)
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:         getEnv("BOOTC_DATA_DIR", "/var/lib/bootc-install"),
		SourceImage:     getEnv("BOOTC_IMAGE", "quay.io/fedora/fedora-bootc:42"),
		TargetImage:     getEnv("BOOTC_TARGET_IMAGE", ""),
		TargetTransport: getEnv("BOOTC_TARGET_TRANSPORT", "registry"),
		ContainerEngine: getEnv("BOOTC_CONTAINER_ENGINE", "podman"),
		BootloaderPath:  getEnv("BOOTC_BOOTLOADER", "/usr/lib/systemd/boot/efi/systemd-bootx64.efi"),
		TempDir:         getEnv("BOOTC_TEMPDIR", os.TempDir()),
		Filesystem:      getEnv("BOOTC_FILESYSTEM", "ext4"),
	}

	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(getEnv("BOOTC_DISK_SIZE", "15GB"))); err != nil {
		size = 15 * datasize.GB
	}
	cfg.DiskSize = size

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
