package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/victordb/victor/internal/mmap"
)

// LocalDirectory implements Directory over a host filesystem directory.
//
// Appends run as an open-append-write-sync-close cycle so the data is
// durable before the call returns. Reads go through a read-only memory
// mapping when possible, so scans stream from the page cache instead of
// copying the file onto the heap.
type LocalDirectory struct {
	root string
}

// NewLocalDirectory creates a Directory rooted at the given path.
// The directory is created if it does not exist.
func NewLocalDirectory(root string) (*LocalDirectory, error) {
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("storage: create root directory: %w", err)
	}
	return &LocalDirectory{root: root}, nil
}

// OpenOrCreate opens the named file, creating it empty if absent.
func (d *LocalDirectory) OpenOrCreate(ctx context.Context, name string) (File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(d.root, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0600) //nolint:gosec // G304: path is rooted at the caller's directory
	if err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	return &localFile{path: path}, nil
}

// Remove removes the named file if present.
func (d *LocalDirectory) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(d.root, name))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

type localFile struct {
	path string

	mu      sync.Mutex
	mapping *mmap.Mapping
}

var _ Mappable = (*localFile)(nil)

func (f *localFile) ReadAll(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(f.path)
}

// Bytes maps the file and returns its contents without copying.
// The previous mapping (if any) is released first, so the returned slice
// is valid until the next Bytes, Append, Truncate or Close call.
func (f *localFile) Bytes(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.mapping != nil {
		if err := f.mapping.Close(); err != nil {
			return nil, err
		}
		f.mapping = nil
	}

	m, err := mmap.Open(f.path)
	if err != nil {
		return nil, err
	}
	f.mapping = m

	return m.Bytes(), nil
}

func (f *localFile) Append(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.dropMappingLocked(); err != nil {
		return err
	}

	h, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) //nolint:gosec // G304
	if err != nil {
		return err
	}

	if _, err := h.Write(p); err != nil {
		_ = h.Close()
		return err
	}
	if err := h.Sync(); err != nil {
		_ = h.Close()
		return err
	}

	return h.Close()
}

func (f *localFile) Size(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	fi, err := os.Stat(f.path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (f *localFile) Truncate(ctx context.Context, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.dropMappingLocked(); err != nil {
		return err
	}

	return os.Truncate(f.path, size)
}

func (f *localFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.dropMappingLocked()
}

func (f *localFile) dropMappingLocked() error {
	if f.mapping == nil {
		return nil
	}
	err := f.mapping.Close()
	f.mapping = nil
	return err
}
