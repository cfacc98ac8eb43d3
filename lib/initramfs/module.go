package initramfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// ErrNoSystemd is returned when the build root has no systemd to override.
var ErrNoSystemd = errors.New("systemd not found in build root")

// Module carries the dracut module semantics: an applicability check, a
// dependency declaration and the file installation step.
type Module struct{}

// Check reports whether the module applies to the given build root. It only
// makes sense where systemd is present.
func (Module) Check(buildRoot string) error {
	for _, p := range []string{
		"usr/lib/systemd/systemd",
		"lib/systemd/systemd",
	} {
		if _, err := os.Stat(filepath.Join(buildRoot, p)); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNoSystemd, buildRoot)
}

// Depends returns the dracut modules this one requires.
func (Module) Depends() []string {
	return []string{"systemd"}
}

// Install stages every drop-in and the preset into the tree.
func (Module) Install(t *Tree) error {
	for _, d := range DropIns {
		if err := t.Add(d.Path(), 0644, []byte(d.Content)); err != nil {
			return fmt.Errorf("stage %s: %w", d.Path(), err)
		}
	}
	if err := t.Add(PresetPath, 0644, []byte(presetContent)); err != nil {
		return fmt.Errorf("stage preset: %w", err)
	}
	return nil
}

// WriteModuleDir emits a dracut module directory consumable by the host's
// dracut: module-setup.sh plus the drop-in payloads next to it.
func (m Module) WriteModuleDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create module dir: %w", err)
	}

	var install strings.Builder
	for i, d := range DropIns {
		payload := fmt.Sprintf("dropin-%02d.conf", i)

		dest, err := securejoin.SecureJoin(dir, payload)
		if err != nil {
			return fmt.Errorf("join %s: %w", payload, err)
		}
		if err := os.WriteFile(dest, []byte(d.Content), 0644); err != nil {
			return fmt.Errorf("write %s: %w", payload, err)
		}

		fmt.Fprintf(&install, "    inst_simple \"$moddir/%s\" \"/%s\"\n", payload, d.Path())
	}

	dest, err := securejoin.SecureJoin(dir, presetName)
	if err != nil {
		return fmt.Errorf("join preset: %w", err)
	}
	if err := os.WriteFile(dest, []byte(presetContent), 0644); err != nil {
		return fmt.Errorf("write preset: %w", err)
	}
	fmt.Fprintf(&install, "    inst_simple \"$moddir/%s\" \"/%s\"\n", presetName, PresetPath)

	setup := fmt.Sprintf(`#!/bin/bash

check() {
    return 0
}

depends() {
    echo %s
    return 0
}

install() {
%s}
`, strings.Join(m.Depends(), " "), install.String())

	setupPath := filepath.Join(dir, "module-setup.sh")
	if err := os.WriteFile(setupPath, []byte(setup), 0755); err != nil {
		return fmt.Errorf("write module-setup.sh: %w", err)
	}
	return nil
}
