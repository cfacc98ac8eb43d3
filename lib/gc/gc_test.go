package gc

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	verityA = "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"
	verityB = "b1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"
	verityC = "c1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"
)

func writeImage(t *testing.T, sysroot, verity string) {
	t.Helper()
	dir := filepath.Join(sysroot, imagesDirRelative, verity)
	require.NoError(t, os.MkdirAll(filepath.Dir(dir), 0755))
	require.NoError(t, os.WriteFile(dir, []byte("erofs"), 0644))
}

func writeStateDir(t *testing.T, sysroot, verity string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(sysroot, stateDirRelative, verity, "etc"), 0755))
}

func writeBootEntry(t *testing.T, bootDir, verity string) {
	t.Helper()
	entries := filepath.Join(bootDir, "loader", "entries")
	require.NoError(t, os.MkdirAll(entries, 0755))
	content := "title Fedora bootc\nlinux /vmlinuz\noptions root=/dev/mapper/root rw composefs=" + verity + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(entries, verity[:8]+".conf"), []byte(content), 0644))
}

func TestListBootEntriesType1(t *testing.T) {
	bootDir := t.TempDir()
	writeBootEntry(t, bootDir, verityA)
	writeBootEntry(t, bootDir, verityB)

	entries, err := ListBootEntries(bootDir)
	require.NoError(t, err)
	require.Equal(t, []string{verityA, verityB}, entries)
}

func TestListBootEntriesCorruptOptions(t *testing.T) {
	bootDir := t.TempDir()
	entries := filepath.Join(bootDir, "loader", "entries")
	require.NoError(t, os.MkdirAll(entries, 0755))

	// form feeds in a corrupt options line must not stall entry parsing
	content := "title broken\noptions foo=bar\f\fcomposefs=" + verityA + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(entries, "broken.conf"), []byte(content), 0644))

	got, err := ListBootEntries(bootDir)
	require.NoError(t, err)
	require.Equal(t, []string{verityA}, got)
}

func TestListBootEntriesEmpty(t *testing.T) {
	entries, err := ListBootEntries(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestListBootEntriesGrubUserCfg(t *testing.T) {
	bootDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(bootDir, "grub2"), 0755))
	cfg := `menuentry "Fedora bootc" {
    linux /boot/vmlinuz composefs=` + verityA + ` rw
}
menuentry "Fedora bootc (rollback)" {
    linux /boot/vmlinuz composefs=` + verityB + ` rw
}
`
	require.NoError(t, os.WriteFile(filepath.Join(bootDir, "grub2", "user.cfg"), []byte(cfg), 0644))

	entries, err := ListBootEntries(bootDir)
	require.NoError(t, err)
	require.Equal(t, []string{verityA, verityB}, entries)
}

func TestRunRemovesOrphanedImage(t *testing.T) {
	sysroot, bootDir := t.TempDir(), t.TempDir()

	// A is booted and anchored; B lost its boot entry
	writeBootEntry(t, bootDir, verityA)
	writeImage(t, sysroot, verityA)
	writeImage(t, sysroot, verityB)
	writeStateDir(t, sysroot, verityA)
	writeStateDir(t, sysroot, verityB)

	res, err := NewCollector(nil).Run(context.Background(), Options{
		Sysroot:      sysroot,
		BootDir:      bootDir,
		BootedVerity: verityA,
	})
	require.NoError(t, err)
	require.Equal(t, []string{verityB}, res.RemovedImages)
	require.Empty(t, res.RemovedStateDirs)

	_, err = os.Stat(filepath.Join(sysroot, imagesDirRelative, verityB))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(sysroot, stateDirRelative, verityB))
	require.True(t, os.IsNotExist(err))

	// the anchored deployment is untouched
	_, err = os.Stat(filepath.Join(sysroot, imagesDirRelative, verityA))
	require.NoError(t, err)
}

func TestRunRemovesOrphanedStateDir(t *testing.T) {
	sysroot, bootDir := t.TempDir(), t.TempDir()

	// previous pass was interrupted after deleting C's image
	writeBootEntry(t, bootDir, verityA)
	writeImage(t, sysroot, verityA)
	writeStateDir(t, sysroot, verityA)
	writeStateDir(t, sysroot, verityC)

	res, err := NewCollector(nil).Run(context.Background(), Options{
		Sysroot:      sysroot,
		BootDir:      bootDir,
		BootedVerity: verityA,
	})
	require.NoError(t, err)
	require.Empty(t, res.RemovedImages)
	require.Equal(t, []string{verityC}, res.RemovedStateDirs)
}

func TestRunRefusesBootedOrphan(t *testing.T) {
	sysroot, bootDir := t.TempDir(), t.TempDir()

	// booted image present, but its boot entry is gone
	writeImage(t, sysroot, verityA)

	_, err := NewCollector(nil).Run(context.Background(), Options{
		Sysroot:      sysroot,
		BootDir:      bootDir,
		BootedVerity: verityA,
	})
	require.ErrorIs(t, err, ErrInconsistentState)
}

func TestRunDryRun(t *testing.T) {
	sysroot, bootDir := t.TempDir(), t.TempDir()

	writeImage(t, sysroot, verityB)
	writeStateDir(t, sysroot, verityB)

	res, err := NewCollector(nil).Run(context.Background(), Options{
		Sysroot: sysroot,
		BootDir: bootDir,
		DryRun:  true,
	})
	require.NoError(t, err)
	require.Equal(t, []string{verityB}, res.RemovedImages)

	// nothing actually deleted
	_, err = os.Stat(filepath.Join(sysroot, imagesDirRelative, verityB))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(sysroot, stateDirRelative, verityB))
	require.NoError(t, err)
}

func TestListStateDirsSkipsFiles(t *testing.T) {
	sysroot := t.TempDir()
	writeStateDir(t, sysroot, verityA)
	require.NoError(t, os.WriteFile(filepath.Join(sysroot, stateDirRelative, "lockfile"), nil, 0644))

	dirs, err := ListStateDirs(sysroot)
	require.NoError(t, err)
	require.Equal(t, []string{verityA}, dirs)
}
