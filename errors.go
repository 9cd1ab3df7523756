package victor

import (
	"errors"
	"fmt"

	"github.com/victordb/victor/record"
	"github.com/victordb/victor/store"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrInvalidEmbedding is returned when an embedding is empty or
	// carries NaN or infinite components.
	ErrInvalidEmbedding = errors.New("invalid embedding")

	// ErrClosed is returned when the database has been closed.
	ErrClosed = errors.New("database is closed")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrCorruptDatabase indicates a record framing violation at Offset.
// The database refuses inserts and searches until Clear, unless repair
// was opted in at open time.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrCorruptDatabase struct {
	Offset int64
	cause  error
}

func (e *ErrCorruptDatabase) Error() string {
	return fmt.Sprintf("corrupt database at offset %d", e.Offset)
}

func (e *ErrCorruptDatabase) Unwrap() error { return e.cause }

// translateError normalizes internal package errors to the public surface.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, store.ErrInvalidEmbedding) {
		return fmt.Errorf("%w: %w", ErrInvalidEmbedding, err)
	}

	var dm *record.DimensionMismatchError
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}

	var ce *store.CorruptError
	if errors.As(err, &ce) {
		return &ErrCorruptDatabase{Offset: ce.Offset, cause: err}
	}

	return err
}
