package image

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/opencontainers/go-digest"
)

// RegistryInspector resolves manifest digests against the remote registry
// without pulling the image.
type RegistryInspector struct{}

var _ ManifestInspector = RegistryInspector{}

// InspectManifest issues a HEAD request for the manifest and returns its
// digest. For multi-arch images this is the manifest list digest.
func (RegistryInspector) InspectManifest(ctx context.Context, imageRef string) (string, error) {
	ref, err := name.ParseReference(imageRef)
	if err != nil {
		return "", fmt.Errorf("parse image reference: %w", err)
	}

	desc, err := remote.Head(ref, remote.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("head manifest: %w", err)
	}

	dgst := desc.Digest.String()
	if _, err := digest.Parse(dgst); err != nil {
		return "", fmt.Errorf("registry returned invalid digest %q: %w", dgst, err)
	}
	return dgst, nil
}
