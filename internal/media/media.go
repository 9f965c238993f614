// Package media relays binary assets (videos, thumbnails, avatars) to an
// external object store and hands back a public URL plus an opaque deletion
// handle. Handlers provision assets here before touching the datastore.
package media

import (
	"context"
	"fmt"
	"io"
)

// Namespaces group assets under stable key prefixes on the remote host.
const (
	NamespaceAvatars    = "avatars"
	NamespaceVideos     = "videos"
	NamespaceThumbnails = "thumbnails"
)

// Asset identifies one stored object: the URL handed to clients and the
// handle needed to delete the object later.
type Asset struct {
	URL    string
	Handle string
}

// Relay stores and releases remote assets. Upload must not be retried by
// callers; a failure is surfaced immediately.
type Relay interface {
	Upload(ctx context.Context, namespace, filename, contentType string, body io.Reader, size int64) (Asset, error)
	Delete(ctx context.Context, handle string) error
}

// Disabled is the Relay used when no object storage is configured: uploads
// fail loudly and deletes no-op, so read-only deployments keep working.
type Disabled struct{}

func (Disabled) Upload(ctx context.Context, namespace, filename, contentType string, body io.Reader, size int64) (Asset, error) {
	return Asset{}, fmt.Errorf("media relay is not configured")
}

func (Disabled) Delete(ctx context.Context, handle string) error {
	return nil
}
