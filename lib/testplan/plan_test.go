package testplan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const samplePlan = `summary: bootc composefs install scenarios
discover:
  how: fmf
  test:
    - /install/to-disk-composefs
    - /install/to-filesystem
    - /install/via-loopback
provision:
  how: virtual
  image: fedora-42
execute:
  how: tmt
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.fmf")
	require.NoError(t, os.WriteFile(path, []byte(samplePlan), 0644))

	p, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	require.Equal(t, "fedora-42", p.Provision.Image)
	require.Equal(t, []string{
		"/install/to-disk-composefs",
		"/install/to-filesystem",
		"/install/via-loopback",
	}, p.Scenarios())
}

func TestWriteThenLoad(t *testing.T) {
	p := &Plan{
		Summary:   "install scenarios",
		Discover:  Discover{How: "fmf", Test: []string{"/install/to-disk-composefs"}},
		Provision: Provision{How: "virtual", Image: "fedora-42"},
		Execute:   Execute{How: "tmt"},
	}

	path := filepath.Join(t.TempDir(), "main.fmf")
	require.NoError(t, p.Write(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, p, loaded)
}

func TestValidate(t *testing.T) {
	p := &Plan{Provision: Provision{Image: "fedora-42"}}
	require.ErrorIs(t, p.Validate(), ErrNoScenarios)

	p = &Plan{
		Discover:  Discover{How: "fmf", Test: []string{""}},
		Provision: Provision{Image: "fedora-42"},
	}
	require.ErrorIs(t, p.Validate(), ErrNoScenarios)

	p = &Plan{Discover: Discover{How: "fmf", Test: []string{"/install/to-disk-composefs"}}}
	require.ErrorIs(t, p.Validate(), ErrNoProvisionImage)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.fmf"))
	require.Error(t, err)
}
