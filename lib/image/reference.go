package image

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/distribution/reference"
)

// Ref is a validated OCI image reference, normalized so short names carry
// their full registry, repository, and tag ("alpine" becomes
// "docker.io/library/alpine:latest"). A Ref is either tagged or pinned to
// a digest, never both.
type Ref struct {
	raw        string
	repository string
	tag        string // empty when pinned
	digest     string // empty when tagged
}

// ParseRef normalizes a user-provided image reference.
func ParseRef(s string) (*Ref, error) {
	named, err := reference.ParseNormalizedNamed(s)
	if err != nil {
		return nil, fmt.Errorf("parse image reference %q: %w", s, err)
	}

	ref := &Ref{repository: reference.Domain(named) + "/" + reference.Path(named)}

	if canonical, ok := named.(reference.Canonical); ok {
		ref.digest = canonical.Digest().String()
		ref.raw = canonical.String()
		return ref, nil
	}

	tagged := reference.TagNameOnly(named)
	if t, ok := tagged.(reference.Tagged); ok {
		ref.tag = t.Tag()
	}
	ref.raw = tagged.String()
	return ref, nil
}

// String returns the full normalized reference.
func (r *Ref) String() string {
	return r.raw
}

// Repository returns the repository path without tag or digest.
func (r *Ref) Repository() string {
	return r.repository
}

// Tag returns the tag, empty for pinned references.
func (r *Ref) Tag() string {
	return r.tag
}

// Digest returns the digest, empty for tagged references.
func (r *Ref) Digest() string {
	return r.digest
}

// Pinned reports whether the reference already carries a digest.
func (r *Ref) Pinned() bool {
	return r.digest != ""
}

// PinTo returns the repository pinned at the given manifest digest.
func (r *Ref) PinTo(digest string) string {
	return r.repository + "@" + digest
}

// ManifestInspector resolves an image reference to its manifest digest.
type ManifestInspector interface {
	InspectManifest(ctx context.Context, imageRef string) (string, error)
}

// Resolver pins source images to manifest digests before the installer
// container runs, so the image the container was started from and the
// image bootc installs cannot drift apart.
type Resolver struct {
	Inspector ManifestInspector
	Log       *slog.Logger
}

// PinSource resolves ref to a digest-pinned reference. Already-pinned
// references pass through without a registry round-trip. For the registry
// transport a failed resolution is fatal. For the local transports the
// image may exist only in container storage, so the tag reference is kept
// and a warning logged.
func (rv Resolver) PinSource(ctx context.Context, transport Transport, ref string) (string, error) {
	r, err := ParseRef(ref)
	if err != nil {
		return "", err
	}
	if r.Pinned() {
		return r.String(), nil
	}

	digest, err := rv.Inspector.InspectManifest(ctx, r.String())
	if err != nil {
		if transport == TransportRegistry {
			return "", fmt.Errorf("resolve %s: %w", r.String(), err)
		}
		rv.Log.Warn("could not resolve source image digest",
			"image", r.String(), "transport", transport.String(), "error", err)
		return r.String(), nil
	}

	pinned := r.PinTo(digest)
	rv.Log.Info("resolved source image", "image", pinned)
	return pinned, nil
}
