// Package store owns the append-only database file.
//
// The file is a concatenation of packed records (see the record package)
// under a well-known name in the caller's root directory. The store fixes
// the database dimension from the first record, appends new records, and
// streams records back in insertion order. The only mutations are append
// and wholesale clear.
package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"sync"

	"github.com/victordb/victor/record"
	"github.com/victordb/victor/storage"
)

// FileName is the database file name within the root directory. A caller
// using multiple logical databases must provide disjoint root directories.
const FileName = "victor.bin"

// ErrInvalidEmbedding is returned when an embedding is empty or carries
// NaN or infinite components.
var ErrInvalidEmbedding = errors.New("store: invalid embedding")

// CorruptError indicates the file violates record framing at Offset.
// The database refuses inserts until cleared (or repaired at open).
type CorruptError struct {
	Offset int64
	cause  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("store: corrupt database at offset %d: %v", e.Offset, e.cause)
}

func (e *CorruptError) Unwrap() error { return e.cause }

// Options contains configuration options for the store.
type Options struct {
	// RepairTruncatedTail truncates the file to the last well-framed
	// record boundary when opening a database with a corrupt tail,
	// instead of refusing inserts until Clear.
	RepairTruncatedTail bool

	// Logger receives structured diagnostics. Defaults to a discarding
	// logger.
	Logger *slog.Logger
}

// DefaultOptions contains the default configuration options for the store.
var DefaultOptions = Options{
	RepairTruncatedTail: false,
}

// Item is one record yielded during iteration.
type Item struct {
	// Ordinal is the record's insertion position, starting at 0.
	Ordinal uint32
	// Offset is the record's byte offset in the file.
	Offset int64
	// View is the parsed record; it aliases the scan buffer.
	View record.View
}

// Store owns the database file. Safe for use by one writer and one
// reader serialized by the caller; a single mutex guards internal state.
type Store struct {
	dir    storage.Directory
	logger *slog.Logger
	repair bool

	mu      sync.Mutex
	file    storage.File
	dim     int
	offsets []int64
	corrupt *CorruptError
}

// Open opens or creates the database file in dir and validates its
// contents with a single forward pass, deriving the dimension and the
// record offsets. A corrupt tail is truncated when RepairTruncatedTail
// is set, otherwise remembered so inserts fail until Clear.
func Open(ctx context.Context, dir storage.Directory, optFns ...func(o *Options)) (*Store, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	file, err := dir.OpenOrCreate(ctx, FileName)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", FileName, err)
	}

	s := &Store{
		dir:    dir,
		file:   file,
		logger: opts.Logger,
		repair: opts.RepairTruncatedTail,
	}

	if err := s.validate(ctx); err != nil {
		_ = file.Close()
		return nil, err
	}

	s.logger.DebugContext(ctx, "database opened",
		"records", len(s.offsets),
		"dimension", s.dim,
	)

	return s, nil
}

// validate scans the file, rebuilding dimension and offsets.
// Framing violations either truncate (repair) or set the sticky
// corruption state. Holding s.mu is not required: only called from Open,
// before the store is shared.
func (s *Store) validate(ctx context.Context) error {
	data, err := storage.Contents(ctx, s.file)
	if err != nil {
		return fmt.Errorf("store: read %s: %w", FileName, err)
	}

	s.dim = 0
	s.offsets = s.offsets[:0]
	s.corrupt = nil

	var off int64
	for off < int64(len(data)) {
		v, n, perr := record.Parse(data[off:])
		if perr == nil && s.dim != 0 && v.Dim != s.dim {
			perr = &record.DimensionMismatchError{Expected: s.dim, Actual: v.Dim}
		}
		if perr != nil {
			return s.handleCorrupt(ctx, off, perr)
		}

		if s.dim == 0 {
			s.dim = v.Dim
		}
		s.offsets = append(s.offsets, off)
		off += int64(n)
	}

	return nil
}

func (s *Store) handleCorrupt(ctx context.Context, off int64, cause error) error {
	if s.repair {
		s.logger.WarnContext(ctx, "truncating corrupt tail",
			"offset", off,
			"error", cause,
		)
		if err := s.file.Truncate(ctx, off); err != nil {
			return fmt.Errorf("store: truncate corrupt tail: %w", err)
		}
		return nil
	}

	s.corrupt = &CorruptError{Offset: off, cause: cause}
	s.logger.ErrorContext(ctx, "database corrupt",
		"offset", off,
		"error", cause,
	)
	return nil
}

// Dimension returns the established vector dimension, 0 when the
// database is empty.
func (s *Store) Dimension() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dim
}

// Len returns the number of well-framed records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.offsets)
}

// Corrupt returns the sticky corruption error, if any.
func (s *Store) Corrupt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.corrupt == nil {
		return nil
	}
	return s.corrupt
}

// ValidateEmbedding rejects empty embeddings and NaN or infinite
// components.
func ValidateEmbedding(vec []float32) error {
	if len(vec) == 0 {
		return ErrInvalidEmbedding
	}
	for _, x := range vec {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrInvalidEmbedding
		}
	}
	return nil
}

// Insert appends one record. The first insert into an empty database
// fixes the dimension; later inserts must match it.
func (s *Store) Insert(ctx context.Context, content string, tags []string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.corrupt != nil {
		return s.corrupt
	}
	if err := ValidateEmbedding(vec); err != nil {
		return err
	}
	if s.dim != 0 && len(vec) != s.dim {
		return &record.DimensionMismatchError{Expected: s.dim, Actual: len(vec)}
	}

	buf, err := record.Append(nil, content, tags, vec)
	if err != nil {
		return err
	}

	size, err := s.file.Size(ctx)
	if err != nil {
		return fmt.Errorf("store: size: %w", err)
	}
	if err := s.file.Append(ctx, buf); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}

	if s.dim == 0 {
		s.dim = len(vec)
	}
	s.offsets = append(s.offsets, size)

	s.logger.DebugContext(ctx, "record inserted",
		"ordinal", len(s.offsets)-1,
		"dimension", len(vec),
		"tags", len(tags),
	)

	return nil
}

// Contents returns the raw packed file plus the byte offset of every
// record, for callers that parse records selectively (filtered search,
// export). The data slice follows storage.Mappable validity rules: it is
// good until the next store mutation.
func (s *Store) Contents(ctx context.Context) ([]byte, []int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.corrupt != nil {
		return nil, nil, s.corrupt
	}

	data, err := storage.Contents(ctx, s.file)
	if err != nil {
		return nil, nil, fmt.Errorf("store: read %s: %w", FileName, err)
	}

	return data, s.offsets, nil
}

// Records yields records in insertion order. A framing violation
// terminates iteration by yielding the corruption error with its byte
// offset. The yielded views alias one scan buffer; copy what outlives
// the loop.
func (s *Store) Records(ctx context.Context) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		s.mu.Lock()
		data, err := storage.Contents(ctx, s.file)
		s.mu.Unlock()

		if err != nil {
			yield(Item{}, fmt.Errorf("store: read %s: %w", FileName, err))
			return
		}

		var off int64
		var ordinal uint32
		var dim int
		for off < int64(len(data)) {
			v, n, perr := record.Parse(data[off:])
			if perr == nil && dim != 0 && v.Dim != dim {
				perr = &record.DimensionMismatchError{Expected: dim, Actual: v.Dim}
			}
			if perr != nil {
				yield(Item{}, &CorruptError{Offset: off, cause: perr})
				return
			}
			dim = v.Dim

			if !yield(Item{Ordinal: ordinal, Offset: off, View: v}, nil) {
				return
			}
			off += int64(n)
			ordinal++
		}
	}
}

// ImportRaw validates data as a well-framed record sequence consistent
// with the database's dimension, then appends it wholesale. Used by
// snapshot import.
func (s *Store) ImportRaw(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.corrupt != nil {
		return s.corrupt
	}
	if len(data) == 0 {
		return nil
	}

	dim := s.dim
	var offsets []int64
	var off int64
	for off < int64(len(data)) {
		v, n, perr := record.Parse(data[off:])
		if perr == nil && dim != 0 && v.Dim != dim {
			perr = &record.DimensionMismatchError{Expected: dim, Actual: v.Dim}
		}
		if perr != nil {
			return fmt.Errorf("store: import at offset %d: %w", off, perr)
		}
		dim = v.Dim
		offsets = append(offsets, off)
		off += int64(n)
	}

	base, err := s.file.Size(ctx)
	if err != nil {
		return fmt.Errorf("store: size: %w", err)
	}
	if err := s.file.Append(ctx, data); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}

	s.dim = dim
	for _, o := range offsets {
		s.offsets = append(s.offsets, base+o)
	}

	s.logger.DebugContext(ctx, "records imported",
		"count", len(offsets),
		"bytes", len(data),
	)

	return nil
}

// Clear removes the backing file and resets the store to empty. The next
// insert re-derives the dimension.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.file.Close(); err != nil {
		return fmt.Errorf("store: close before clear: %w", err)
	}
	if err := s.dir.Remove(ctx, FileName); err != nil {
		return fmt.Errorf("store: remove %s: %w", FileName, err)
	}

	file, err := s.dir.OpenOrCreate(ctx, FileName)
	if err != nil {
		return fmt.Errorf("store: reopen %s: %w", FileName, err)
	}

	s.file = file
	s.dim = 0
	s.offsets = s.offsets[:0]
	s.corrupt = nil

	s.logger.DebugContext(ctx, "database cleared")

	return nil
}

// Close releases the file handle. The store must not be used afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
