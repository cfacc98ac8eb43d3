package providers

import (
	"context"
	"log/slog"
	"os"

	"github.com/Johan-Liebert1/bootc/lib/config"
	"github.com/Johan-Liebert1/bootc/lib/disk"
	"github.com/Johan-Liebert1/bootc/lib/gc"
	"github.com/Johan-Liebert1/bootc/lib/image"
	"github.com/Johan-Liebert1/bootc/lib/install"
	"github.com/Johan-Liebert1/bootc/lib/system"
)

// ProvideContext provides a base context
func ProvideContext() context.Context {
	return context.Background()
}

// ProvideLogger provides a structured logger
func ProvideLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// ProvideConfig provides the application configuration
func ProvideConfig() *config.Config {
	return config.Load()
}

// ProvideRunner provides the external command runner
func ProvideRunner(log *slog.Logger) system.Runner {
	return system.NewRunner(log)
}

// ProvideProvisioner provides the disk provisioner
func ProvideProvisioner(runner system.Runner) disk.Provisioner {
	return disk.NewProvisioner(runner)
}

// ProvideResolver provides the source image resolver
func ProvideResolver(log *slog.Logger) image.Resolver {
	return image.Resolver{Inspector: image.RegistryInspector{}, Log: log}
}

// ProvideInstallManager provides the install manager running the given
// installer image
func ProvideInstallManager(cfg *config.Config, installerImage string, runner system.Runner, log *slog.Logger) install.Manager {
	return install.NewManager(cfg.ContainerEngine, installerImage, runner, log)
}

// ProvideCollector provides the deployment garbage collector
func ProvideCollector(log *slog.Logger) *gc.Collector {
	return gc.NewCollector(log)
}
