// Package install drives "bootc install" inside a privileged installer
// container. The heavy lifting (image deployment, composefs setup, verity)
// happens inside bootc itself; this package assembles the invocation,
// provides the device or filesystem target, and finishes the manual
// bootloader placement.
package install

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Johan-Liebert1/bootc/lib/system"
)

// targetMount is where the target device or root shows up inside the
// installer container.
const targetMount = "/target"

// Manager runs bootc install flows.
type Manager interface {
	// ToDisk installs the image onto a block device or disk image file.
	ToDisk(ctx context.Context, opts ToDiskOptions) error

	// ToFilesystem installs the image into an existing mounted filesystem.
	ToFilesystem(ctx context.Context, opts ToFilesystemOptions) error
}

type manager struct {
	engine       string // container engine binary, e.g. podman
	installerImg string
	runner       system.Runner
	log          *slog.Logger
}

// NewManager creates an install manager running installerImg via engine.
func NewManager(engine, installerImg string, runner system.Runner, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}
	return &manager{
		engine:       engine,
		installerImg: installerImg,
		runner:       runner,
		log:          log,
	}
}

func (m *manager) ToDisk(ctx context.Context, opts ToDiskOptions) error {
	if opts.Device == "" {
		return ErrNoDevice
	}
	if err := system.RequireRoot(); err != nil {
		return err
	}

	target := filepath.Join(targetMount, filepath.Base(opts.Device))
	bootc := bootcToDiskArgs(opts, target)
	args := containerArgs(m.installerImg, filepath.Dir(opts.Device), bootc)

	m.log.Info("installing to disk",
		"device", opts.Device,
		"image", m.installerImg,
		"composefs", opts.ComposefsNative,
	)

	if err := m.runner.Run(ctx, m.engine, args...); err != nil {
		return fmt.Errorf("bootc install to-disk: %w", err)
	}
	return nil
}

func (m *manager) ToFilesystem(ctx context.Context, opts ToFilesystemOptions) error {
	if opts.Root == "" {
		return ErrNoRoot
	}
	if err := system.RequireRoot(); err != nil {
		return err
	}

	bootc := bootcToFilesystemArgs(opts, targetMount)
	args := containerArgs(m.installerImg, opts.Root, bootc)

	m.log.Info("installing to filesystem", "root", opts.Root, "image", m.installerImg)

	if err := m.runner.Run(ctx, m.engine, args...); err != nil {
		return fmt.Errorf("bootc install to-filesystem: %w", err)
	}
	return nil
}

// containerArgs builds the privileged installer container invocation. The
// container needs the host PID namespace and container storage so bootc can
// find its own image, plus the host /dev for device and loopback access.
func containerArgs(installerImg, hostTargetDir string, bootcArgs []string) []string {
	args := []string{
		"run",
		"--rm",
		"--privileged",
		"--pid=host",
		"--net=host",
		"--security-opt", "label=type:unconfined_t",
		"-v", "/var/lib/containers:/var/lib/containers",
		"-v", "/dev:/dev",
		"-v", fmt.Sprintf("%s:%s", hostTargetDir, targetMount),
		installerImg,
		"bootc",
	}
	return append(args, bootcArgs...)
}

func bootcCommonArgs(o Options) []string {
	var args []string
	if o.ComposefsNative {
		args = append(args, "--composefs-native")
	}
	if o.Bootloader != "" {
		args = append(args, "--bootloader", o.Bootloader)
	}
	if o.SourceImgref != "" {
		args = append(args, "--source-imgref", o.SourceImgref)
	}
	if o.TargetImgref != "" {
		args = append(args, "--target-imgref", o.TargetImgref)
	}
	if o.TargetTransport != "" {
		args = append(args, "--target-transport", o.TargetTransport.String())
	}
	for _, karg := range o.Kargs {
		args = append(args, "--karg", karg)
	}
	return args
}

func bootcToDiskArgs(o ToDiskOptions, target string) []string {
	args := []string{"install", "to-disk"}
	args = append(args, bootcCommonArgs(o.Options)...)
	if o.Filesystem != "" {
		args = append(args, "--filesystem", o.Filesystem)
	}
	if o.Wipe {
		args = append(args, "--wipe")
	}
	if o.GenericImage {
		args = append(args, "--generic-image")
	}
	if o.ViaLoopback {
		args = append(args, "--via-loopback")
	}
	return append(args, target)
}

func bootcToFilesystemArgs(o ToFilesystemOptions, target string) []string {
	args := []string{"install", "to-filesystem"}
	args = append(args, bootcCommonArgs(o.Options)...)
	return append(args, target)
}
