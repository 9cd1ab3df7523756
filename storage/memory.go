package storage

import (
	"context"
	"sync"
)

// MemoryDirectory is an in-memory Directory implementation for tests and
// ephemeral databases. All data is lost when the value is garbage
// collected. Thread-safe for concurrent handles.
type MemoryDirectory struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		files: make(map[string][]byte),
	}
}

// OpenOrCreate opens the named file, creating it empty if absent.
func (d *MemoryDirectory) OpenOrCreate(ctx context.Context, name string) (File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.files[name]; !ok {
		d.files[name] = nil
	}

	return &memoryFile{dir: d, name: name}, nil
}

// Remove removes the named file if present.
func (d *MemoryDirectory) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.files, name)
	return nil
}

// memoryFile reads and writes the directory entry it was opened from, so
// every handle for a name observes the same contents.
type memoryFile struct {
	dir  *MemoryDirectory
	name string
}

func (f *memoryFile) ReadAll(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.dir.mu.RLock()
	defer f.dir.mu.RUnlock()

	data, ok := f.dir.files[f.name]
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (f *memoryFile) Append(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.dir.mu.Lock()
	defer f.dir.mu.Unlock()

	data, ok := f.dir.files[f.name]
	if !ok {
		return ErrNotFound
	}

	f.dir.files[f.name] = append(data, p...)
	return nil
}

func (f *memoryFile) Size(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f.dir.mu.RLock()
	defer f.dir.mu.RUnlock()

	data, ok := f.dir.files[f.name]
	if !ok {
		return 0, ErrNotFound
	}
	return int64(len(data)), nil
}

func (f *memoryFile) Truncate(ctx context.Context, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.dir.mu.Lock()
	defer f.dir.mu.Unlock()

	data, ok := f.dir.files[f.name]
	if !ok {
		return ErrNotFound
	}
	if size < int64(len(data)) {
		f.dir.files[f.name] = data[:size]
	}
	return nil
}

func (f *memoryFile) Close() error { return nil }
