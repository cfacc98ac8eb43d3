package image

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	ref, err := ParseRef("alpine")
	require.NoError(t, err)
	require.Equal(t, "docker.io/library/alpine:latest", ref.String())
	require.Equal(t, "docker.io/library/alpine", ref.Repository())
	require.Equal(t, "latest", ref.Tag())
	require.False(t, ref.Pinned())

	ref, err = ParseRef("quay.io/fedora/fedora-bootc:42")
	require.NoError(t, err)
	require.Equal(t, "quay.io/fedora/fedora-bootc:42", ref.String())
	require.Equal(t, "42", ref.Tag())

	_, err = ParseRef("UPPERCASE/not/valid")
	require.Error(t, err)
}

func TestParsePinnedRef(t *testing.T) {
	d := "sha256:03edba74079ba47a2a6c41b401af5a26bd133b2e7b31e5b95c62e5b1cbeb5d51"
	ref, err := ParseRef("quay.io/fedora/fedora-bootc@" + d)
	require.NoError(t, err)
	require.True(t, ref.Pinned())
	require.Equal(t, d, ref.Digest())
	require.Empty(t, ref.Tag())
}

type staticInspector string

func (s staticInspector) InspectManifest(ctx context.Context, imageRef string) (string, error) {
	return string(s), nil
}

type failingInspector struct{}

func (failingInspector) InspectManifest(ctx context.Context, imageRef string) (string, error) {
	return "", errors.New("manifest unknown")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPinSource(t *testing.T) {
	d := "sha256:03edba74079ba47a2a6c41b401af5a26bd133b2e7b31e5b95c62e5b1cbeb5d51"
	rv := Resolver{Inspector: staticInspector(d), Log: discardLogger()}

	pinned, err := rv.PinSource(context.Background(), TransportRegistry, "quay.io/fedora/fedora-bootc:42")
	require.NoError(t, err)
	require.Equal(t, "quay.io/fedora/fedora-bootc@"+d, pinned)

	// already-pinned refs pass through without hitting the inspector
	rv.Inspector = failingInspector{}
	pinned, err = rv.PinSource(context.Background(), TransportRegistry, "quay.io/fedora/fedora-bootc@"+d)
	require.NoError(t, err)
	require.Equal(t, "quay.io/fedora/fedora-bootc@"+d, pinned)
}

func TestPinSourceFailure(t *testing.T) {
	rv := Resolver{Inspector: failingInspector{}, Log: discardLogger()}

	// registry installs must pin
	_, err := rv.PinSource(context.Background(), TransportRegistry, "quay.io/fedora/fedora-bootc:42")
	require.ErrorContains(t, err, "manifest unknown")

	// local storage images keep the tag reference
	pinned, err := rv.PinSource(context.Background(), TransportContainersStorage, "quay.io/fedora/fedora-bootc:42")
	require.NoError(t, err)
	require.Equal(t, "quay.io/fedora/fedora-bootc:42", pinned)
}

func TestParseTransport(t *testing.T) {
	for _, s := range []string{"registry", "containers-storage", "oci", "dir"} {
		tr, err := ParseTransport(s)
		require.NoError(t, err)
		require.Equal(t, s, tr.String())
	}

	_, err := ParseTransport("http")
	require.ErrorIs(t, err, ErrUnknownTransport)
}
