package disk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/c2h5oh/datasize"

	"github.com/Johan-Liebert1/bootc/lib/system"
)

// Provisioner creates disk images, attaches them to loop devices and
// applies partition layouts.
type Provisioner interface {
	// CreateImage creates a sparse disk image of the given size.
	CreateImage(ctx context.Context, path string, size datasize.ByteSize) error

	// Attach attaches the image to a free loop device with partition
	// scanning enabled. Callers own the returned device and must Detach it.
	Attach(ctx context.Context, path string) (*LoopDevice, error)

	// Apply writes the partition table to the device and rereads it.
	Apply(ctx context.Context, dev *LoopDevice, pt *PartitionTable) error

	// MakeFilesystems creates the filesystems declared by the table on the
	// corresponding partition devices.
	MakeFilesystems(ctx context.Context, dev *LoopDevice, pt *PartitionTable) error

	// Mount mounts a partition device node at dir.
	Mount(ctx context.Context, node, dir string) error

	// Unmount unmounts dir.
	Unmount(ctx context.Context, dir string) error
}

type provisioner struct {
	runner system.Runner
}

// NewProvisioner creates a Provisioner backed by the host disk tools.
func NewProvisioner(runner system.Runner) Provisioner {
	return &provisioner{runner: runner}
}

// LoopDevice is an attached loop device.
type LoopDevice struct {
	// Path is the device node, e.g. /dev/loop0.
	Path string

	// ImagePath is the backing image file.
	ImagePath string

	runner   system.Runner
	detached bool
}

func (p *provisioner) CreateImage(ctx context.Context, path string, size datasize.ByteSize) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create image parent dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	defer f.Close()

	// Sparse file; blocks allocate on write.
	if err := f.Truncate(int64(size.Bytes())); err != nil {
		return fmt.Errorf("truncate image to %s: %w", size.HumanReadable(), err)
	}
	return nil
}

func (p *provisioner) Attach(ctx context.Context, path string) (*LoopDevice, error) {
	if err := system.RequireRoot(); err != nil {
		return nil, err
	}

	dev, err := p.runner.Output(ctx, "losetup", "--find", "--show", "--partscan", path)
	if err != nil {
		return nil, fmt.Errorf("attach loop device: %w", err)
	}

	return &LoopDevice{Path: dev, ImagePath: path, runner: p.runner}, nil
}

func (p *provisioner) Apply(ctx context.Context, dev *LoopDevice, pt *PartitionTable) error {
	if dev.detached {
		return ErrNotAttached
	}
	if err := pt.Validate(); err != nil {
		return err
	}

	script := strings.NewReader(pt.SfdiskScript())
	if err := p.runner.RunInput(ctx, script, "sfdisk", dev.Path); err != nil {
		return fmt.Errorf("write partition table: %w", err)
	}

	// sfdisk already issues a reread, but loop devices attached with
	// --partscan occasionally race it. Force one more pass.
	if err := p.runner.Run(ctx, "partx", "--update", dev.Path); err != nil {
		return fmt.Errorf("reread partition table: %w", err)
	}
	return nil
}

func (p *provisioner) MakeFilesystems(ctx context.Context, dev *LoopDevice, pt *PartitionTable) error {
	if dev.detached {
		return ErrNotAttached
	}

	for i, part := range pt.Partitions {
		fs := part.Filesystem
		if fs == nil {
			continue
		}

		node := dev.Partition(i + 1)
		args := mkfsArgs(fs)
		args = append(args, node)

		if err := p.runner.Run(ctx, "mkfs."+fs.Type, args...); err != nil {
			return fmt.Errorf("mkfs.%s on %s: %w", fs.Type, node, err)
		}
	}
	return nil
}

func (p *provisioner) Mount(ctx context.Context, node, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create mountpoint: %w", err)
	}
	if err := p.runner.Run(ctx, "mount", node, dir); err != nil {
		return fmt.Errorf("mount %s: %w", node, err)
	}
	return nil
}

func (p *provisioner) Unmount(ctx context.Context, dir string) error {
	if err := p.runner.Run(ctx, "umount", dir); err != nil {
		return fmt.Errorf("unmount %s: %w", dir, err)
	}
	return nil
}

func mkfsArgs(fs *Filesystem) []string {
	var args []string
	if fs.Label != "" {
		switch fs.Type {
		case "vfat":
			args = append(args, "-n", fs.Label)
		default:
			args = append(args, "-L", fs.Label)
		}
	}
	args = append(args, fs.MkfsArgs...)
	return args
}

// Partition returns the device node of the nth partition (1-based).
// Devices whose name ends in a digit get a "p" separator (loop0p1).
func (d *LoopDevice) Partition(n int) string {
	name := d.Path
	if len(name) > 0 && unicode.IsDigit(rune(name[len(name)-1])) {
		return fmt.Sprintf("%sp%d", name, n)
	}
	return fmt.Sprintf("%s%d", name, n)
}

// Detach releases the loop device. Safe to call more than once, so callers
// can defer it unconditionally.
func (d *LoopDevice) Detach(ctx context.Context) error {
	if d.detached {
		return nil
	}
	if err := d.runner.Run(ctx, "losetup", "--detach", d.Path); err != nil {
		return fmt.Errorf("detach %s: %w", d.Path, err)
	}
	d.detached = true
	return nil
}
