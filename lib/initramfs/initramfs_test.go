package initramfs

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cavaliergopher/cpio"
	"github.com/stretchr/testify/require"
)

func TestModuleInstall(t *testing.T) {
	tree := NewTree()
	require.NoError(t, Module{}.Install(tree))

	paths := tree.Paths()

	// every drop-in, the preset, and the implicit parent directories
	require.Contains(t, paths, "usr/lib/systemd/system/sysroot.mount.d/50-bootc-composefs.conf")
	require.Contains(t, paths, "usr/lib/systemd/system/systemd-fsck-root.service.d/50-bootc-composefs.conf")
	require.Contains(t, paths, PresetPath)
	require.Contains(t, paths, "usr/lib/systemd/system")

	var files int
	for _, p := range paths {
		if filepath.Ext(p) == ".conf" || filepath.Ext(p) == ".preset" {
			files++
		}
	}
	require.Equal(t, len(DropIns)+1, files)
}

func TestModuleDepends(t *testing.T) {
	require.Equal(t, []string{"systemd"}, Module{}.Depends())
}

func TestModuleCheck(t *testing.T) {
	root := t.TempDir()
	require.ErrorIs(t, Module{}.Check(root), ErrNoSystemd)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr/lib/systemd"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "usr/lib/systemd/systemd"), nil, 0755))
	require.NoError(t, Module{}.Check(root))
}

func TestWriteCpio(t *testing.T) {
	tree := NewTree()
	require.NoError(t, Module{}.Install(tree))
	require.NoError(t, tree.Symlink("50-bootc-composefs.conf", "usr/lib/systemd/system/initrd.target.d/alias.conf"))

	var buf bytes.Buffer
	require.NoError(t, tree.WriteCpio(&buf))

	seen := map[string]string{}
	r := cpio.NewReader(&buf)
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		content, err := io.ReadAll(r)
		require.NoError(t, err)
		seen[hdr.Name] = string(content)
	}

	require.Equal(t, presetContent, seen[PresetPath])
	require.Contains(t, seen["usr/lib/systemd/system/sysroot.mount.d/50-bootc-composefs.conf"], "Requires=composefs-setup-root.service")
	// symlink body is the target path
	require.Equal(t, "50-bootc-composefs.conf", seen["usr/lib/systemd/system/initrd.target.d/alias.conf"])
}

func TestWriteCpioDeterministic(t *testing.T) {
	render := func() []byte {
		tree := NewTree()
		require.NoError(t, Module{}.Install(tree))
		var buf bytes.Buffer
		require.NoError(t, tree.WriteCpio(&buf))
		return buf.Bytes()
	}
	require.Equal(t, render(), render())
}

func TestWriteModuleDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Module{}.WriteModuleDir(dir))

	setup, err := os.ReadFile(filepath.Join(dir, "module-setup.sh"))
	require.NoError(t, err)
	require.Contains(t, string(setup), "echo systemd")
	require.Contains(t, string(setup), "inst_simple")
	require.Contains(t, string(setup), DropIns[0].Path())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	// module-setup.sh + one payload per drop-in + preset
	require.Len(t, entries, len(DropIns)+2)
}

func TestTreeConflicts(t *testing.T) {
	tree := NewTree()
	require.NoError(t, tree.Add("etc/foo.conf", 0644, []byte("x")))
	// re-adding a file overwrites
	require.NoError(t, tree.Add("etc/foo.conf", 0644, []byte("y")))
	// staging over a directory fails
	require.Error(t, tree.Add("etc", 0644, nil))
	require.Error(t, tree.Symlink("x", "etc/foo.conf"))
}
