// Package initramfs stages the composefs boot configuration for the
// initramfs: a fixed set of systemd drop-ins and a preset, deliverable
// either as a cpio overlay or as a dracut module directory.
package initramfs

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"

	"github.com/cavaliergopher/cpio"
)

type entryKind int

const (
	kindDir entryKind = iota
	kindFile
	kindSymlink
)

type entry struct {
	kind    entryKind
	name    string
	mode    fs.FileMode
	content []byte
	target  string
}

// Tree is an ordered staging area for initramfs entries. Parent directories
// are created implicitly and entries are written in path order so archives
// are reproducible.
type Tree struct {
	entries map[string]entry
}

// NewTree creates an empty staging tree.
func NewTree() *Tree {
	return &Tree{entries: map[string]entry{}}
}

// MkdirAll stages the directory and all missing parents.
func (t *Tree) MkdirAll(name string) {
	name = path.Clean(name)
	if name == "." || name == "/" {
		return
	}
	t.MkdirAll(path.Dir(name))
	if _, ok := t.entries[name]; !ok {
		t.entries[name] = entry{kind: kindDir, name: name, mode: 0755}
	}
}

// Add stages a regular file.
func (t *Tree) Add(name string, mode fs.FileMode, content []byte) error {
	name = path.Clean(name)
	if existing, ok := t.entries[name]; ok && existing.kind != kindFile {
		return fmt.Errorf("%s already staged as a different type", name)
	}
	t.MkdirAll(path.Dir(name))
	t.entries[name] = entry{kind: kindFile, name: name, mode: mode, content: content}
	return nil
}

// Symlink stages a symbolic link pointing at target.
func (t *Tree) Symlink(target, name string) error {
	name = path.Clean(name)
	if _, ok := t.entries[name]; ok {
		return fmt.Errorf("%s already staged", name)
	}
	t.MkdirAll(path.Dir(name))
	t.entries[name] = entry{kind: kindSymlink, name: name, mode: 0777, target: target}
	return nil
}

// Paths returns every staged path in order.
func (t *Tree) Paths() []string {
	paths := make([]string, 0, len(t.entries))
	for name := range t.entries {
		paths = append(paths, name)
	}
	sort.Strings(paths)
	return paths
}

// WriteCpio writes the tree as a newc cpio archive, the format the kernel
// accepts for initramfs overlays.
func (t *Tree) WriteCpio(w io.Writer) error {
	cw := cpio.NewWriter(w)

	for _, name := range t.Paths() {
		e := t.entries[name]
		switch e.kind {
		case kindDir:
			hdr := &cpio.Header{
				Name: e.name,
				Mode: cpio.TypeDir | cpio.FileMode(e.mode.Perm()),
			}
			if err := cw.WriteHeader(hdr); err != nil {
				return fmt.Errorf("write header for %s: %w", e.name, err)
			}

		case kindFile:
			hdr := &cpio.Header{
				Name: e.name,
				Mode: cpio.TypeReg | cpio.FileMode(e.mode.Perm()),
				Size: int64(len(e.content)),
			}
			if err := cw.WriteHeader(hdr); err != nil {
				return fmt.Errorf("write header for %s: %w", e.name, err)
			}
			if _, err := cw.Write(e.content); err != nil {
				return fmt.Errorf("write %s: %w", e.name, err)
			}

		case kindSymlink:
			hdr := &cpio.Header{
				Name: e.name,
				Mode: cpio.TypeSymlink | cpio.FileMode(e.mode.Perm()),
				Size: int64(len(e.target)),
			}
			if err := cw.WriteHeader(hdr); err != nil {
				return fmt.Errorf("write header for %s: %w", e.name, err)
			}
			// body of a link is the target path
			if _, err := cw.Write([]byte(e.target)); err != nil {
				return fmt.Errorf("write %s: %w", e.name, err)
			}
		}
	}

	if err := cw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}
