// Package blob stores opaque file content: backup archives and profile
// pictures. Two implementations exist, a local filesystem store for
// development and an S3-compatible store for deployments.
package blob

import "context"

// Store is the file storage abstraction used by the backup and profile
// services.
type Store interface {
	// Put writes data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get reads the object stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// URL returns a link a client can download the object from. The
	// link may be time-limited.
	URL(ctx context.Context, key string) (string, error)

	// Delete removes the object. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error
}
