// Package storage abstracts the directory and file capabilities the
// database needs, so the same store runs against a blocking filesystem,
// an in-memory map, or a handle-based asynchronous object store.
//
// Every operation takes a context.Context and is potentially suspending;
// implementations over synchronous I/O satisfy the contract by returning
// immediately.
package storage

import (
	"context"
	"os"
)

// ErrNotFound is returned when a named file does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Directory is a root-directory handle in which database files live.
type Directory interface {
	// OpenOrCreate opens the named file, creating it empty if absent.
	// It is idempotent.
	OpenOrCreate(ctx context.Context, name string) (File, error)

	// Remove removes the named file. Removing an absent file is not an
	// error.
	Remove(ctx context.Context, name string) error
}

// File is a handle to one file within a Directory.
type File interface {
	// ReadAll returns the full contents.
	ReadAll(ctx context.Context) ([]byte, error)

	// Append writes p at the end of the file. The data must be durable
	// before Append returns.
	Append(ctx context.Context, p []byte) error

	// Size returns the current length in bytes.
	Size(ctx context.Context) (int64, error)

	// Truncate shortens the file to size bytes.
	Truncate(ctx context.Context, size int64) error

	// Close releases the handle. It is idempotent.
	Close() error
}

// Mappable is an optional interface for Files supporting zero-copy reads.
type Mappable interface {
	// Bytes returns the file contents without copying onto the heap.
	// The slice is valid until the next Bytes, Append, Truncate or
	// Close call on the same File.
	Bytes(ctx context.Context) ([]byte, error)
}

// Contents reads a file's full contents, preferring the zero-copy path
// when the backend supports it. The returned slice follows the validity
// rules of Mappable.Bytes when that path is taken.
func Contents(ctx context.Context, f File) ([]byte, error) {
	if m, ok := f.(Mappable); ok {
		return m.Bytes(ctx)
	}
	return f.ReadAll(ctx)
}
