package etc

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// Merge applies local /etc changes onto the new deployment's /etc:
// added and locally modified entries are carried over from currentDir,
// entries deleted locally are removed from newDir. Paths from the diff are
// joined securely so a hostile tree cannot escape newDir.
func Merge(diff *Diff, currentDir, newDir string) error {
	for _, rel := range append(append([]string{}, diff.Added...), diff.Modified...) {
		src := filepath.Join(currentDir, rel)
		dest, err := securejoin.SecureJoin(newDir, rel)
		if err != nil {
			return fmt.Errorf("join %s: %w", rel, err)
		}
		if err := copyEntry(src, dest); err != nil {
			return fmt.Errorf("carry over %s: %w", rel, err)
		}
	}

	for _, rel := range diff.Removed {
		dest, err := securejoin.SecureJoin(newDir, rel)
		if err != nil {
			return fmt.Errorf("join %s: %w", rel, err)
		}
		if err := os.RemoveAll(dest); err != nil {
			return fmt.Errorf("remove %s: %w", rel, err)
		}
	}

	return nil
}

func copyEntry(src, dest string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	switch {
	case info.IsDir():
		return os.MkdirAll(dest, info.Mode().Perm())

	case info.Mode()&fs.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		_ = os.Remove(dest)
		return os.Symlink(target, dest)

	default:
		in, err := os.Open(src)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		return os.Chmod(dest, info.Mode().Perm())
	}
}
