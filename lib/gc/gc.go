// Package gc recovers from deployment deletion that failed midway. Deleting
// a composefs deployment removes the bootloader entry, then the EROFS image,
// then the state directory; an interruption between any two steps leaves
// orphans behind. The collector walks all three sets and removes whatever
// lost its anchor.
package gc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samber/lo"
)

// Paths below sysroot, fixed by the composefs deployment layout.
const (
	imagesDirRelative = "composefs/images"
	stateDirRelative  = "composefs/state"
	stagedRelative    = "composefs/staged"
)

// Options configure a collection run.
type Options struct {
	// Sysroot is the physical root holding the composefs store.
	Sysroot string

	// BootDir is the mounted /boot with the bootloader entries.
	BootDir string

	// BootedVerity is the verity digest of the booted deployment. The
	// collector refuses to run when the booted image itself shows up as an
	// orphan.
	BootedVerity string

	// DryRun only reports what would be removed.
	DryRun bool
}

// Result reports what a run removed (or would remove under DryRun).
type Result struct {
	RemovedImages    []string
	RemovedStateDirs []string
}

// Collector runs composefs garbage collection.
type Collector struct {
	log *slog.Logger
}

// NewCollector creates a Collector.
func NewCollector(log *slog.Logger) *Collector {
	if log == nil {
		log = slog.Default()
	}
	return &Collector{log: log}
}

// ListImages returns the EROFS images (verity digests) in the store.
func ListImages(sysroot string) ([]string, error) {
	dirents, err := os.ReadDir(filepath.Join(sysroot, imagesDirRelative))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing EROFS images: %w", err)
	}

	var images []string
	for _, d := range dirents {
		images = append(images, d.Name())
	}
	return images, nil
}

// ListStateDirs returns the per-deployment state directories. Plain files
// in the state root are skipped.
func ListStateDirs(sysroot string) ([]string, error) {
	dirents, err := os.ReadDir(filepath.Join(sysroot, stateDirRelative))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing state directories: %w", err)
	}

	var dirs []string
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		dirs = append(dirs, d.Name())
	}
	return dirs, nil
}

// Run performs one collection pass.
func (c *Collector) Run(ctx context.Context, opts Options) (*Result, error) {
	entries, err := ListBootEntries(opts.BootDir)
	if err != nil {
		return nil, err
	}
	images, err := ListImages(opts.Sysroot)
	if err != nil {
		return nil, err
	}

	// images that lost their bootloader entry
	orphanImages := lo.Filter(images, func(v string, _ int) bool {
		return !lo.Contains(entries, v)
	})

	if opts.BootedVerity != "" && lo.Contains(orphanImages, opts.BootedVerity) {
		return nil, fmt.Errorf("%w: booted entry %q found for cleanup", ErrInconsistentState, opts.BootedVerity)
	}

	result := &Result{}

	for _, verity := range orphanImages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.log.Debug("cleaning up orphaned image", "verity", verity, "dry_run", opts.DryRun)

		if err := c.deleteStaged(opts); err != nil {
			return nil, err
		}
		if err := c.remove(opts, filepath.Join(imagesDirRelative, verity)); err != nil {
			return nil, fmt.Errorf("delete image %s: %w", verity, err)
		}
		if err := c.remove(opts, filepath.Join(stateDirRelative, verity)); err != nil {
			return nil, fmt.Errorf("delete state dir %s: %w", verity, err)
		}
		result.RemovedImages = append(result.RemovedImages, verity)
	}

	// state dirs that lost their image: the previous pass was interrupted
	// after deleting the image
	stateDirs, err := ListStateDirs(opts.Sysroot)
	if err != nil {
		return nil, err
	}
	orphanState := lo.Filter(stateDirs, func(v string, _ int) bool {
		return !lo.Contains(images, v)
	})

	for _, verity := range orphanState {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.log.Debug("cleaning up orphaned state dir", "verity", verity, "dry_run", opts.DryRun)

		if err := c.deleteStaged(opts); err != nil {
			return nil, err
		}
		if err := c.remove(opts, filepath.Join(stateDirRelative, verity)); err != nil {
			return nil, fmt.Errorf("delete state dir %s: %w", verity, err)
		}
		result.RemovedStateDirs = append(result.RemovedStateDirs, verity)
	}

	return result, nil
}

// deleteStaged drops the staged deployment marker if present. Idempotent.
func (c *Collector) deleteStaged(opts Options) error {
	path := filepath.Join(opts.Sysroot, stagedRelative)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if opts.DryRun {
		c.log.Info("would delete staged deployment", "path", path)
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("delete staged deployment: %w", err)
	}
	return nil
}

func (c *Collector) remove(opts Options, rel string) error {
	path := filepath.Join(opts.Sysroot, rel)
	if opts.DryRun {
		c.log.Info("would remove", "path", path)
		return nil
	}
	return os.RemoveAll(path)
}
