// Package etc computes and applies the /etc merge performed across
// deployments: files locally modified relative to the pristine /usr/etc are
// retained, unmodified files pick up the new deployment's defaults.
package etc

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
)

// entryMeta identifies a file's state without keeping its content around.
type entryMeta struct {
	// contentHash is the sha256 of file content or symlink target.
	// Empty for directories and verity-protected files.
	contentHash string
	// metadataHash covers type, size (non-dirs) and permissions.
	metadataHash string
	// verity is the fs-verity digest when enabled.
	verity    string
	hasVerity bool
}

type treeMap map[string]entryMeta

// Diff describes how the current /etc diverged from the pristine defaults.
type Diff struct {
	// Added files exist in current but not in pristine.
	Added []string
	// Modified files differ from pristine by content, metadata or verity.
	Modified []string
	// Removed files exist in pristine but were deleted from current.
	Removed []string
}

// ComputeDiff walks the pristine /usr/etc and the current /etc and returns
// the local changes. Both trees are hashed concurrently.
func ComputeDiff(ctx context.Context, pristineDir, currentDir string) (*Diff, error) {
	var pristine, current treeMap

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := walkTree(pristineDir)
		if err != nil {
			return fmt.Errorf("recursing %s: %w", pristineDir, err)
		}
		pristine = m
		return nil
	})
	g.Go(func() error {
		m, err := walkTree(currentDir)
		if err != nil {
			return fmt.Errorf("recursing %s: %w", currentDir, err)
		}
		current = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	diff := &Diff{}

	for path, cur := range current {
		old, ok := pristine[path]
		if !ok {
			diff.Added = append(diff.Added, path)
			continue
		}

		switch {
		case cur.hasVerity && old.hasVerity:
			if cur.verity != old.verity {
				diff.Modified = append(diff.Modified, path)
			}
			delete(pristine, path)
			continue
		case cur.hasVerity != old.hasVerity:
			return nil, fmt.Errorf("%w: %s", ErrVerityMismatch, path)
		}

		if old.metadataHash != cur.metadataHash || old.contentHash != cur.contentHash {
			diff.Modified = append(diff.Modified, path)
		}
		delete(pristine, path)
	}

	for path := range pristine {
		diff.Removed = append(diff.Removed, path)
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Modified)
	sort.Strings(diff.Removed)
	return diff, nil
}

func walkTree(root string) (treeMap, error) {
	m := treeMap{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("getting metadata for %s: %w", rel, err)
		}

		switch {
		case d.IsDir():
			m[rel] = entryMeta{metadataHash: metadataHash(info)}
			return nil

		case info.Mode()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("readlink %s: %w", rel, err)
			}
			sum := sha256.Sum256([]byte(target))
			m[rel] = entryMeta{
				contentHash:  hex.EncodeToString(sum[:]),
				metadataHash: metadataHash(info),
			}
			return nil

		case info.Mode().IsRegular():
			verity, ok, err := measureVerity(path)
			if err != nil {
				return fmt.Errorf("measure verity for %s: %w", rel, err)
			}
			if ok {
				// verity digest already covers the content
				m[rel] = entryMeta{verity: verity, hasVerity: true}
				return nil
			}

			sum, err := hashFile(path)
			if err != nil {
				return err
			}
			m[rel] = entryMeta{
				contentHash:  sum,
				metadataHash: metadataHash(info),
			}
			return nil

		default:
			// sockets, pipes and the like should not show up in /etc
			slog.Debug("ignoring non-regular entry", "path", rel)
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// metadataHash covers the entry type, the size for non-directories, and the
// permission bits.
func metadataHash(info fs.FileInfo) string {
	h := sha256.New()

	ty := []byte{
		boolByte(info.Mode().IsRegular()),
		boolByte(info.IsDir()),
		boolByte(info.Mode()&fs.ModeSymlink != 0),
	}
	h.Write(ty)

	var buf [8]byte
	if !info.IsDir() {
		binary.LittleEndian.PutUint64(buf[:], uint64(info.Size()))
		h.Write(buf[:])
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(info.Mode().Perm()))
	h.Write(buf[:])

	return hex.EncodeToString(h.Sum(nil))
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
