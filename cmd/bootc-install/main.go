// bootc-install drives "bootc install" through a privileged installer
// container: to-disk against a device or loopback image, to-filesystem
// against a mounted root, and the manual provisioning flow that prepares a
// composefs-ready disk image (GPT, filesystems, bootloader placement).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/c2h5oh/datasize"

	"github.com/Johan-Liebert1/bootc/lib/config"
	"github.com/Johan-Liebert1/bootc/lib/disk"
	"github.com/Johan-Liebert1/bootc/lib/image"
	"github.com/Johan-Liebert1/bootc/lib/install"
	"github.com/Johan-Liebert1/bootc/lib/providers"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application terminated", "error", err)
		os.Exit(1)
	}
}

func usage() error {
	fmt.Fprintf(os.Stderr, "usage: %s <to-disk|to-filesystem|provision> [flags] <target>\n", os.Args[0])
	return errors.New("missing subcommand")
}

func run() error {
	log := providers.ProvideLogger()
	slog.SetDefault(log)

	cfg := providers.ProvideConfig()

	ctx, stop := signal.NotifyContext(providers.ProvideContext(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		return usage()
	}

	switch os.Args[1] {
	case "to-disk":
		return runToDisk(ctx, cfg, os.Args[2:])
	case "to-filesystem":
		return runToFilesystem(ctx, cfg, os.Args[2:])
	case "provision":
		return runProvision(ctx, cfg, os.Args[2:])
	default:
		return usage()
	}
}

// kargList collects repeated --karg flags.
type kargList []string

func (k *kargList) String() string { return fmt.Sprint([]string(*k)) }

func (k *kargList) Set(v string) error {
	*k = append(*k, v)
	return nil
}

func commonFlags(fs *flag.FlagSet, cfg *config.Config, kargs *kargList) *install.Options {
	opts := &install.Options{}
	fs.BoolVar(&opts.ComposefsNative, "composefs-native", true, "use the composefs-native backend")
	fs.StringVar(&opts.Bootloader, "bootloader", "systemd", "bootloader backend")
	fs.StringVar(&opts.SourceImgref, "source-imgref", "", "install from this image reference")
	fs.StringVar(&opts.TargetImgref, "target-imgref", cfg.TargetImage, "image the installed system tracks")
	fs.Var(kargs, "karg", "kernel argument for the boot entry (repeatable)")
	return opts
}

// resolveSource pins the configured source image to its manifest digest so
// the installer container runs exactly what bootc installs.
func resolveSource(ctx context.Context, cfg *config.Config, transport image.Transport, log *slog.Logger) (string, error) {
	return providers.ProvideResolver(log).PinSource(ctx, transport, cfg.SourceImage)
}

func runToDisk(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("to-disk", flag.ExitOnError)
	var kargs kargList
	common := commonFlags(fs, cfg, &kargs)

	var (
		wipe        = fs.Bool("wipe", false, "discard any existing partition table")
		generic     = fs.Bool("generic-image", false, "produce a machine-independent image")
		viaLoopback = fs.Bool("via-loopback", false, "install to a regular file through a loop device")
		filesystem  = fs.String("filesystem", cfg.Filesystem, "root filesystem type")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("to-disk requires exactly one target device or image path")
	}
	device := fs.Arg(0)

	log := slog.Default()

	transport, err := image.ParseTransport(cfg.TargetTransport)
	if err != nil {
		return err
	}
	common.TargetTransport = transport
	common.Kargs = []string(kargs)

	source, err := resolveSource(ctx, cfg, transport, log)
	if err != nil {
		return err
	}

	runner := providers.ProvideRunner(log)

	if *viaLoopback {
		if _, err := os.Stat(device); errors.Is(err, os.ErrNotExist) {
			prov := providers.ProvideProvisioner(runner)
			log.Info("creating disk image", "path", device, "size", cfg.DiskSize.HumanReadable())
			if err := prov.CreateImage(ctx, device, cfg.DiskSize); err != nil {
				return err
			}
		}
	}

	mgr := providers.ProvideInstallManager(cfg, source, runner, log)
	return mgr.ToDisk(ctx, install.ToDiskOptions{
		Options:      *common,
		Device:       device,
		Filesystem:   *filesystem,
		Wipe:         *wipe,
		GenericImage: *generic,
		ViaLoopback:  *viaLoopback,
	})
}

func runToFilesystem(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("to-filesystem", flag.ExitOnError)
	var kargs kargList
	common := commonFlags(fs, cfg, &kargs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("to-filesystem requires exactly one mounted target root")
	}
	root := fs.Arg(0)

	log := slog.Default()

	transport, err := image.ParseTransport(cfg.TargetTransport)
	if err != nil {
		return err
	}
	common.TargetTransport = transport
	common.Kargs = []string(kargs)

	source, err := resolveSource(ctx, cfg, transport, log)
	if err != nil {
		return err
	}

	runner := providers.ProvideRunner(log)
	mgr := providers.ProvideInstallManager(cfg, source, runner, log)
	return mgr.ToFilesystem(ctx, install.ToFilesystemOptions{
		Options: *common,
		Root:    root,
	})
}

// runProvision prepares a composefs-ready disk image without invoking the
// installer: sparse image, GPT layout, filesystems, bootloader on the ESP.
func runProvision(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("provision", flag.ExitOnError)
	var (
		sizeStr        = fs.String("size", cfg.DiskSize.HumanReadable(), "disk image size")
		bootloaderPath = fs.String("bootloader-path", cfg.BootloaderPath, "systemd-boot EFI binary")
		skipBootloader = fs.Bool("skip-bootloader", false, "do not place the bootloader on the ESP")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("provision requires exactly one image path")
	}
	imagePath := fs.Arg(0)

	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(*sizeStr)); err != nil {
		return fmt.Errorf("parse size: %w", err)
	}

	log := slog.Default()
	runner := providers.ProvideRunner(log)
	prov := providers.ProvideProvisioner(runner)

	log.Info("creating disk image", "path", imagePath, "size", size.HumanReadable())
	if err := prov.CreateImage(ctx, imagePath, size); err != nil {
		return err
	}

	dev, err := prov.Attach(ctx, imagePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Detach(context.WithoutCancel(ctx)); err != nil {
			log.Error("detaching loop device", "device", dev.Path, "error", err)
		}
	}()

	pt := disk.DefaultComposefsLayout(size)
	if err := prov.Apply(ctx, dev, &pt); err != nil {
		return err
	}
	if err := prov.MakeFilesystems(ctx, dev, &pt); err != nil {
		return err
	}
	log.Info("partitioned", "device", dev.Path, "partitions", len(pt.Partitions))

	if *skipBootloader {
		return nil
	}

	espDir, err := os.MkdirTemp(cfg.TempDir, "bootc-esp-*")
	if err != nil {
		return fmt.Errorf("create ESP mountpoint: %w", err)
	}
	defer os.RemoveAll(espDir)

	// the ESP is always the first partition in the default layout
	if err := prov.Mount(ctx, dev.Partition(1), espDir); err != nil {
		return err
	}
	defer func() {
		if err := prov.Unmount(context.WithoutCancel(ctx), espDir); err != nil {
			log.Error("unmounting ESP", "dir", espDir, "error", err)
		}
	}()

	if err := install.PlaceBootloader(espDir, *bootloaderPath); err != nil {
		return err
	}
	log.Info("bootloader placed", "esp", espDir, "binary", *bootloaderPath)
	return nil
}
