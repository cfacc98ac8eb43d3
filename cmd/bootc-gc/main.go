// bootc-gc removes composefs deployment leftovers: images whose bootloader
// entry is gone and state directories whose image is gone.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Johan-Liebert1/bootc/lib/gc"
	"github.com/Johan-Liebert1/bootc/lib/kargs"
	"github.com/Johan-Liebert1/bootc/lib/providers"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application terminated", "error", err)
		os.Exit(1)
	}
}

func run() error {
	log := providers.ProvideLogger()
	slog.SetDefault(log)

	var (
		sysroot = flag.String("sysroot", "/sysroot", "physical root holding the composefs store")
		bootDir = flag.String("boot-dir", "/boot", "mounted /boot with the bootloader entries")
		booted  = flag.String("booted", "", "verity of the booted deployment (default: from /proc/cmdline)")
		dryRun  = flag.Bool("dry-run", false, "only report what would be removed")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(providers.ProvideContext(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootedVerity := *booted
	if bootedVerity == "" {
		cmdline, err := kargs.FromProc()
		if err != nil {
			return err
		}
		if v, ok := cmdline.ValueOf("composefs"); ok {
			bootedVerity = string(v)
		}
	}

	collector := providers.ProvideCollector(log)
	result, err := collector.Run(ctx, gc.Options{
		Sysroot:      *sysroot,
		BootDir:      *bootDir,
		BootedVerity: bootedVerity,
		DryRun:       *dryRun,
	})
	if err != nil {
		return err
	}

	fmt.Printf("removed %d images, %d state dirs\n", len(result.RemovedImages), len(result.RemovedStateDirs))
	for _, v := range result.RemovedImages {
		fmt.Printf("  image: %s\n", v)
	}
	for _, v := range result.RemovedStateDirs {
		fmt.Printf("  state: %s\n", v)
	}
	return nil
}
