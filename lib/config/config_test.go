package config

import (
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, "podman", cfg.ContainerEngine)
	require.Equal(t, "registry", cfg.TargetTransport)
	require.Equal(t, "ext4", cfg.Filesystem)
	require.Equal(t, 15*datasize.GB, cfg.DiskSize)
	require.NotEmpty(t, cfg.SourceImage)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BOOTC_IMAGE", "localhost/test-bootc:latest")
	t.Setenv("BOOTC_DISK_SIZE", "20GB")
	t.Setenv("BOOTC_CONTAINER_ENGINE", "docker")

	cfg := Load()

	require.Equal(t, "localhost/test-bootc:latest", cfg.SourceImage)
	require.Equal(t, 20*datasize.GB, cfg.DiskSize)
	require.Equal(t, "docker", cfg.ContainerEngine)
}

func TestLoadBadSizeFallsBack(t *testing.T) {
	t.Setenv("BOOTC_DISK_SIZE", "not-a-size")

	cfg := Load()

	require.Equal(t, 15*datasize.GB, cfg.DiskSize)
}
