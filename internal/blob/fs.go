package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nabil/devstash/internal/apperror"
)

var _ Store = (*FS)(nil)

// FS stores objects as files under a root directory. URLs are served by
// the application's own /files handler.
type FS struct {
	root    string
	baseURL string
}

// NewFS creates a filesystem store rooted at root. baseURL is the
// public prefix the /files handler is mounted on, without a trailing
// slash.
func NewFS(root, baseURL string) (*FS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob: creating storage root: %w", err)
	}
	return &FS{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Put writes the object, creating intermediate directories as needed.
func (f *FS) Put(ctx context.Context, key string, data []byte, contentType string) error {
	path, err := f.safePath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("blob: creating directory for %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("blob: writing %s: %w", key, err)
	}
	return nil
}

func (f *FS) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := f.safePath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperror.NotFound("file", key)
		}
		return nil, fmt.Errorf("blob: reading %s: %w", key, err)
	}
	return data, nil
}

func (f *FS) URL(ctx context.Context, key string) (string, error) {
	if _, err := f.safePath(key); err != nil {
		return "", err
	}
	return f.baseURL + "/" + key, nil
}

func (f *FS) Delete(ctx context.Context, key string) error {
	path, err := f.safePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blob: deleting %s: %w", key, err)
	}
	return nil
}

// Open returns the resolved filesystem path for a key. The /files
// handler uses it to serve stored objects.
func (f *FS) Open(key string) (string, error) {
	return f.safePath(key)
}

// safePath resolves a key inside the root and rejects traversal
// attempts.
func (f *FS) safePath(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", apperror.ValidationFailed("key", "invalid storage key")
	}
	path := filepath.Join(f.root, filepath.FromSlash(key))
	if !strings.HasPrefix(path, filepath.Clean(f.root)+string(os.PathSeparator)) {
		return "", apperror.ValidationFailed("key", "storage key escapes the root")
	}
	return path, nil
}
