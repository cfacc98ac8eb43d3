package gc

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Johan-Liebert1/bootc/lib/kargs"
)

// composefsKarg is the kernel argument carrying the root verity digest of a
// boot entry.
const composefsKarg = "composefs"

// ListBootEntries returns the composefs verity digest of every bootloader
// entry under bootDir. Both layouts are handled: BLS Type1 entries in
// loader/entries, and the grub user.cfg written for UKI boots.
func ListBootEntries(bootDir string) ([]string, error) {
	if _, err := os.Stat(filepath.Join(bootDir, "grub2", userCfg)); err == nil {
		return grubUserCfgEntries(bootDir)
	}
	return type1Entries(bootDir)
}

// type1Entries parses BLS Type1 entries (loader/entries/*.conf), pulling
// the verity from each entry's options line.
func type1Entries(bootDir string) ([]string, error) {
	entriesDir := filepath.Join(bootDir, "loader", "entries")

	dirents, err := os.ReadDir(entriesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing bootloader entries: %w", err)
	}

	var verities []string
	for _, d := range dirents {
		if d.IsDir() || filepath.Ext(d.Name()) != ".conf" {
			continue
		}

		path := filepath.Join(entriesDir, d.Name())
		verity, err := entryVerity(path)
		if err != nil {
			return nil, err
		}
		if verity != "" {
			verities = append(verities, verity)
		}
	}

	sort.Strings(verities)
	return verities, nil
}

func entryVerity(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open boot entry: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		rest, ok := strings.CutPrefix(line, "options ")
		if !ok {
			continue
		}
		if v, ok := kargs.Cmdline(rest).ValueOf(composefsKarg); ok {
			return string(v), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read boot entry %s: %w", path, err)
	}
	return "", nil
}

const userCfg = "user.cfg"

// grubUserCfgEntries extracts verities from the grub user.cfg used for UKI
// boot entries. Each menuentry carries the composefs karg on its kernel
// command line.
func grubUserCfgEntries(bootDir string) ([]string, error) {
	f, err := os.Open(filepath.Join(bootDir, "grub2", userCfg))
	if err != nil {
		return nil, fmt.Errorf("open user.cfg: %w", err)
	}
	defer f.Close()

	var verities []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(line, composefsKarg+"=")
		if idx < 0 {
			continue
		}
		if v, ok := kargs.Cmdline(line[idx:]).ValueOf(composefsKarg); ok {
			verities = append(verities, string(v))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read user.cfg: %w", err)
	}

	sort.Strings(verities)
	return verities, nil
}
