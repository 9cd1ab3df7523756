// Package snapshot moves a database between backends as one compressed
// stream.
//
// An export is a small header followed by the raw packed record sequence
// run through the chosen compression codec. Because the on-disk format is
// already position-independent, import is validate-and-append: a snapshot
// taken against the local filesystem backend restores unchanged into an
// object-store backed database and vice versa.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/victordb/victor/store"
)

// Compression selects the codec for the exported record stream.
type Compression byte

const (
	// CompressionNone stores the record stream as-is.
	CompressionNone Compression = iota
	// CompressionZstd compresses with zstandard. The default.
	CompressionZstd
	// CompressionLZ4 compresses with lz4, trading ratio for speed.
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", byte(c))
	}
}

// magic identifies a snapshot stream. version is bumped on incompatible
// header changes.
var magic = [4]byte{'V', 'S', 'N', 'P'}

const version = 1

// ErrBadHeader is returned when a stream does not start with a valid
// snapshot header.
var ErrBadHeader = errors.New("snapshot: bad header")

// Options configures Export.
type Options struct {
	// Compression selects the stream codec.
	Compression Compression
}

// DefaultOptions contains the default Export configuration.
var DefaultOptions = Options{
	Compression: CompressionZstd,
}

// Export writes the database's full record stream to w.
func Export(ctx context.Context, st *store.Store, w io.Writer, optFns ...func(o *Options)) error {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	data, _, err := st.Contents(ctx)
	if err != nil {
		return err
	}

	header := []byte{magic[0], magic[1], magic[2], magic[3], version, byte(opts.Compression)}
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("snapshot: write header: %w", err)
	}

	switch opts.Compression {
	case CompressionNone:
		_, err = w.Write(data)
		return err

	case CompressionZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("snapshot: zstd writer: %w", err)
		}
		if _, err := enc.Write(data); err != nil {
			_ = enc.Close()
			return err
		}
		return enc.Close()

	case CompressionLZ4:
		enc := lz4.NewWriter(w)
		if _, err := enc.Write(data); err != nil {
			_ = enc.Close()
			return err
		}
		return enc.Close()

	default:
		return fmt.Errorf("snapshot: unsupported compression %v", opts.Compression)
	}
}

// Import appends the snapshot's records to the database. The snapshot's
// dimension must match the database's unless it is empty; record framing
// is validated before anything is written.
func Import(ctx context.Context, st *store.Store, r io.Reader) error {
	var header [6]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if [4]byte(header[:4]) != magic || header[4] != version {
		return ErrBadHeader
	}

	var body io.Reader
	switch Compression(header[5]) {
	case CompressionNone:
		body = r

	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return fmt.Errorf("snapshot: zstd reader: %w", err)
		}
		defer dec.Close()
		body = dec

	case CompressionLZ4:
		body = lz4.NewReader(r)

	default:
		return fmt.Errorf("%w: unsupported compression %d", ErrBadHeader, header[5])
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("snapshot: read stream: %w", err)
	}

	return st.ImportRaw(ctx, data)
}
