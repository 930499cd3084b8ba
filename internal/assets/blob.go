package assets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/vintera/labelforge/internal/fault"
)

// BlobStore is the durable object store boundary. Upload must have
// create-if-absent semantics: writing a key that already exists fails
// with a storage-conflict error, which callers treat as success because
// an identical content-addressed key implies identical content.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte) (url string, err error)
	Remove(ctx context.Context, key string) error
	URL(key string) string
}

// ContentKey is the content-addressed storage path for a checksum. It is
// deliberately independent of generation and asset ids.
func ContentKey(checksum, format string) string {
	return fmt.Sprintf("content/%s.%s", checksum, format)
}

// FSStore implements BlobStore on a local directory. Writes go through a
// temp file plus an exclusive-create link, guarded by a file lock so
// concurrent processes sharing the directory cannot interleave partial
// writes.
type FSStore struct {
	root    string
	baseURL string
	logger  *slog.Logger
}

// NewFSStore creates the store rooted at dir. Served URLs are
// baseURL + "/" + key.
func NewFSStore(dir, baseURL string, logger *slog.Logger) (*FSStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating blob root: %w", err)
	}
	return &FSStore{
		root:    dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}, nil
}

// Upload writes data at key, never overwriting. An existing key yields a
// storage-conflict error.
func (s *FSStore) Upload(ctx context.Context, key string, data []byte) (string, error) {
	path, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("creating blob directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return "", fmt.Errorf("acquiring blob lock: %w", err)
	}
	if !locked {
		return "", fault.New(fault.KindStorage, true, "blob lock unavailable").With("key", key)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(path + ".lock")
	}()

	// O_EXCL gives the create-if-absent semantics; whoever lands first
	// wins and everyone else observes the conflict.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		if os.IsExist(err) {
			return "", fault.Wrap(fault.KindStorage, false, "blob already exists", err).
				With("key", key)
		}
		return "", fmt.Errorf("creating blob %s: %w", key, err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("writing blob %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("closing blob %s: %w", key, err)
	}

	s.logger.Debug("blob written", "key", key, "bytes", len(data))
	return s.URL(key), nil
}

// Remove deletes a blob. Used only by upload cleanup when an alias write
// fails after a fresh blob write.
func (s *FSStore) Remove(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing blob %s: %w", key, err)
	}
	return nil
}

// URL returns the public URL for a key.
func (s *FSStore) URL(key string) string {
	return s.baseURL + "/" + key
}

// path resolves a key inside the root, rejecting traversal.
func (s *FSStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fault.Validation("invalid blob key").With("key", key)
	}
	return filepath.Join(s.root, clean), nil
}
