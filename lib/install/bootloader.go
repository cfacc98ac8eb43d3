package install

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// loaderConf is the systemd-boot configuration placed on the ESP.
const loaderConf = "timeout 5\n"

// PlaceBootloader copies the systemd-boot EFI binary onto a mounted ESP and
// writes the loader configuration. bootc's systemd bootloader backend
// expects the binary at the removable media path.
func PlaceBootloader(espDir, bootloaderPath string) error {
	if _, err := os.Stat(bootloaderPath); err != nil {
		return fmt.Errorf("%w: %s", ErrNoBootloader, bootloaderPath)
	}

	bootDir, err := securejoin.SecureJoin(espDir, "EFI/BOOT")
	if err != nil {
		return fmt.Errorf("join ESP path: %w", err)
	}
	if err := os.MkdirAll(bootDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", bootDir, err)
	}

	dest := filepath.Join(bootDir, removableMediaName())
	if err := copyFile(bootloaderPath, dest); err != nil {
		return fmt.Errorf("place bootloader: %w", err)
	}

	loaderDir, err := securejoin.SecureJoin(espDir, "loader")
	if err != nil {
		return fmt.Errorf("join loader path: %w", err)
	}
	if err := os.MkdirAll(loaderDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", loaderDir, err)
	}
	if err := os.WriteFile(filepath.Join(loaderDir, "loader.conf"), []byte(loaderConf), 0644); err != nil {
		return fmt.Errorf("write loader.conf: %w", err)
	}

	return nil
}

// removableMediaName is the fallback boot path firmware probes on the ESP.
func removableMediaName() string {
	switch runtime.GOARCH {
	case "arm64":
		return "BOOTAA64.EFI"
	default:
		return "BOOTX64.EFI"
	}
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy to %s: %w", dest, err)
	}
	return out.Close()
}
