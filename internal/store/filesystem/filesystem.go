// Package filesystem implements the app.FileStore port (C8) backed by the
// local filesystem. Blob files are named by a freshly generated,
// server-chosen reference; no path ever echoes user input.
package filesystem

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/voltzug/cinder/internal/app"
	"github.com/voltzug/cinder/internal/domain"
)

// Ensure BlobStore implements app.FileStore.
var _ app.FileStore = (*BlobStore)(nil)

// BlobStore implements app.FileStore using the local filesystem.
type BlobStore struct {
	root string
}

// New returns a filesystem-backed blob store rooted at dir. The directory
// must already exist with secure permissions (0700 recommended).
func New(root string) (*BlobStore, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, errors.New("blob root is not a directory")
	}
	return &BlobStore{root: root}, nil
}

func (b *BlobStore) path(ref domain.PathReference) string {
	return filepath.Join(b.root, ref.String()+".blob")
}

// Save streams exactly size bytes from r into a freshly named file and
// returns its reference. The reference is a UUID, never derived from
// anything the uploader provided.
func (b *BlobStore) Save(_ context.Context, r io.Reader, size int64) (domain.PathReference, error) {
	ref := domain.PathReference(uuid.New().String())
	p := b.path(ref)
	// #nosec G304: path is root + a freshly generated UUID + fixed suffix.
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.CopyN(f, r, size); err != nil {
		_ = os.Remove(p)
		return "", err
	}
	if err := f.Sync(); err != nil {
		return "", err
	}
	return ref, nil
}

// Load opens the blob at ref for reading. The caller owns burning it (a
// separate Delete call), unlike a delete-on-close blob store: C10's burn
// cascade needs the blob to outlive the read until the cascade runs.
func (b *BlobStore) Load(_ context.Context, ref domain.PathReference) (io.ReadCloser, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	f, err := os.Open(b.path(ref)) // #nosec G304 path constructed internally
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrFileNotFound
		}
		return nil, err
	}
	return f, nil
}

// Delete removes the blob at ref. Idempotent: removing an already-absent
// blob is not an error, since both the burn cascade and rollback paths may
// race a janitor sweep.
func (b *BlobStore) Delete(_ context.Context, ref domain.PathReference) error {
	if ref == "" {
		return nil
	}
	if err := validateRef(ref); err != nil {
		return err
	}
	if err := os.Remove(b.path(ref)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// validateRef enforces that ref is a canonical UUID, both preventing path
// traversal (no separators, fixed shape) and guaranteeing uniform filenames.
func validateRef(ref domain.PathReference) error {
	if _, err := uuid.Parse(ref.String()); err != nil {
		return errors.New("invalid blob reference: must be a UUID")
	}
	if strings.Contains(ref.String(), "..") { // defense-in-depth
		return errors.New("invalid blob reference: contains '..'")
	}
	return nil
}
