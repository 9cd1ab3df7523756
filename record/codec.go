package record

import (
	"encoding/binary"
	"math"

	"github.com/victordb/victor/internal/math32"
	"github.com/victordb/victor/quantization"
)

// EncodedSize returns the exact number of bytes Append will write for the
// given record fields.
func EncodedSize(content string, tags []string, dim int) int {
	size := 4 + 4 + dim + 4 // magnitude + dim + codes + tag_count
	for _, tag := range tags {
		size += 2 + len(tag)
	}
	size += 4 + len(content)
	return size
}

// Append encodes one record and appends it to buf.
//
// The embedding is stored as its L2 norm plus int8 levels quantized
// against that norm. A zero vector stores magnitude 0 with all-zero
// levels. Returns ErrTagTooLong if a tag does not fit its length field.
func Append(buf []byte, content string, tags []string, vec []float32) ([]byte, error) {
	for _, tag := range tags {
		if len(tag) > MaxTagLen {
			return nil, ErrTagTooLong
		}
	}

	magnitude := quantization.Magnitude(vec)
	// A finite vector can still overflow the float32 norm; refuse to
	// write a record that could never parse back.
	if math.IsNaN(float64(magnitude)) || math.IsInf(float64(magnitude), 0) {
		return nil, ErrUnsupportedMagnitude
	}

	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(magnitude))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(vec))) //nolint:gosec

	start := len(buf)
	buf = append(buf, make([]byte, len(vec))...)
	quantization.Quantize(buf[start:], vec, magnitude)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tags))) //nolint:gosec
	for _, tag := range tags {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(tag))) //nolint:gosec
		buf = append(buf, tag...)
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(content))) //nolint:gosec
	buf = append(buf, content...)

	return buf, nil
}

// View is a parsed record backed by the buffer it was parsed from.
// Codes and the content bytes alias the source buffer; they are valid
// only as long as the buffer is.
type View struct {
	Magnitude float32
	Dim       int
	Codes     []byte
	Tags      []string

	content []byte
}

// Content returns the record's content string.
func (v *View) Content() string {
	return string(v.content)
}

// Vector reconstructs the embedding from its quantized form.
// The reconstruction is lossy; per-component error is bounded by
// Magnitude/127. Search does not call this - distance is computed over
// the packed form.
func (v *View) Vector() []float32 {
	return quantization.Dequantize(v.Codes, v.Magnitude)
}

// SquaredDistance returns the squared Euclidean distance between the
// query and the record's reconstructed embedding, fused into a single
// pass over the packed codes. len(query) must equal v.Dim.
func (v *View) SquaredDistance(query []float32) float32 {
	return math32.PackedSquaredL2(query, v.Codes, v.Magnitude)
}

// HasAllTags reports whether the record's tag set is a superset of filter.
// An empty filter admits every record.
func (v *View) HasAllTags(filter []string) bool {
	for _, want := range filter {
		found := false
		for _, tag := range v.Tags {
			if tag == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Parse decodes the record starting at buf[0] and returns the view plus
// the number of bytes the record occupies.
//
// Returns ErrTruncated if any declared length runs past the end of buf,
// and ErrUnsupportedMagnitude if the stored magnitude is NaN or infinite.
func Parse(buf []byte) (View, int, error) {
	var v View
	off := 0

	if len(buf) < 8 {
		return View{}, 0, ErrTruncated
	}

	v.Magnitude = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	if math.IsNaN(float64(v.Magnitude)) || math.IsInf(float64(v.Magnitude), 0) {
		return View{}, 0, ErrUnsupportedMagnitude
	}

	dim := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	v.Dim = int(dim)

	if len(buf)-off < v.Dim {
		return View{}, 0, ErrTruncated
	}
	v.Codes = buf[off : off+v.Dim]
	off += v.Dim

	if len(buf)-off < 4 {
		return View{}, 0, ErrTruncated
	}
	tagCount := binary.LittleEndian.Uint32(buf[off:])
	off += 4

	if tagCount > 0 {
		v.Tags = make([]string, 0, tagCount)
	}
	for i := uint32(0); i < tagCount; i++ {
		if len(buf)-off < 2 {
			return View{}, 0, ErrTruncated
		}
		tagLen := int(binary.LittleEndian.Uint16(buf[off:]))
		off += 2

		if len(buf)-off < tagLen {
			return View{}, 0, ErrTruncated
		}
		v.Tags = append(v.Tags, string(buf[off:off+tagLen]))
		off += tagLen
	}

	if len(buf)-off < 4 {
		return View{}, 0, ErrTruncated
	}
	contentLen := binary.LittleEndian.Uint32(buf[off:])
	off += 4

	if uint64(len(buf)-off) < uint64(contentLen) {
		return View{}, 0, ErrTruncated
	}
	v.content = buf[off : off+int(contentLen)]
	off += int(contentLen)

	return v, off, nil
}
