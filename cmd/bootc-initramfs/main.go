// bootc-initramfs emits the composefs boot configuration for the
// initramfs, either as a cpio overlay or as a dracut module directory.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/Johan-Liebert1/bootc/lib/initramfs"
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
		output    = flag.String("output", "", "write a cpio overlay to this path")
		moduleDir = flag.String("module-dir", "", "write a dracut module directory to this path")
		checkRoot = flag.String("check", "", "verify the module applies to this build root")
	)
	flag.Parse()

	mod := initramfs.Module{}

	if *checkRoot != "" {
		if err := mod.Check(*checkRoot); err != nil {
			return err
		}
		log.Info("module applies", "root", *checkRoot, "depends", mod.Depends())
	}

	if *moduleDir != "" {
		if err := mod.WriteModuleDir(*moduleDir); err != nil {
			return err
		}
		log.Info("dracut module written", "dir", *moduleDir)
	}

	if *output != "" {
		tree := initramfs.NewTree()
		if err := mod.Install(tree); err != nil {
			return err
		}

		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("create %s: %w", *output, err)
		}
		if err := tree.WriteCpio(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Info("overlay written", "path", *output, "entries", len(tree.Paths()))
	}

	if *output == "" && *moduleDir == "" && *checkRoot == "" {
		return errors.New("nothing to do: pass -output, -module-dir or -check")
	}
	return nil
}
