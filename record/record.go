// Package record implements the packed on-disk record format.
//
// A database file is a concatenation of records, each fully framed by its
// own prefix so the file parses in a single forward pass. All integers are
// little-endian:
//
//	magnitude   float32   L2 norm of the original embedding
//	dim         uint32    number of components
//	codes       dim bytes int8 quantization levels
//	tag_count   uint32
//	per tag:    uint16 length + bytes
//	content_len uint32
//	content     content_len bytes
//
// Vector components are stored quantized against the record's own
// magnitude (see the quantization package); distance against a query is
// computed directly over the packed form without materializing the
// reconstruction.
package record

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrTruncated is returned when a declared length runs past the end
	// of the buffer.
	ErrTruncated = errors.New("record: truncated")

	// ErrUnsupportedMagnitude is returned when a stored magnitude is NaN
	// or infinite.
	ErrUnsupportedMagnitude = errors.New("record: unsupported magnitude")

	// ErrTagTooLong is returned when a tag exceeds the uint16 length field.
	ErrTagTooLong = errors.New("record: tag exceeds maximum length")
)

// MaxTagLen is the largest encodable tag, bounded by its uint16 length field.
const MaxTagLen = math.MaxUint16

// DimensionMismatchError is returned when a record's dimension differs
// from the database's established dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("record: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Record is the in-memory form of one database entry.
type Record struct {
	Content string
	Tags    []string
	Vector  []float32
}
