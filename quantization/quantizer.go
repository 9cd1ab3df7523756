// Package quantization provides the magnitude-normalized scalar quantization
// used by the packed record format.
package quantization

import (
	"math"

	"github.com/victordb/victor/internal/math32"
)

// Levels is the number of quantization levels on each side of zero.
// A component at +magnitude maps to +Levels, at -magnitude to -Levels.
const Levels = 127

// Magnitude returns the L2 norm of v.
func Magnitude(v []float32) float32 {
	return math32.Norm(v)
}

// Quantize encodes v into dst as int8 levels normalized against magnitude.
//
// Each component maps to round(v[i] / magnitude * Levels), clamped to
// [-Levels, Levels]. Clamping guards against float rounding pushing a
// component past the representable range. A zero magnitude encodes every
// component as level 0.
//
// dst must have len(v) capacity; len(dst) == len(v) on return.
func Quantize(dst []byte, v []float32, magnitude float32) []byte {
	dst = dst[:len(v)]

	if magnitude == 0 {
		for i := range dst {
			dst[i] = 0
		}
		return dst
	}

	scale := float64(Levels) / float64(magnitude)
	for i, val := range v {
		q := math.Round(float64(val) * scale)
		if q > Levels {
			q = Levels
		} else if q < -Levels {
			q = -Levels
		}
		dst[i] = byte(int8(q))
	}

	return dst
}

// Dequantize reconstructs the vector encoded by Quantize.
//
// The reconstruction error is bounded by magnitude/Levels per component.
func Dequantize(codes []byte, magnitude float32) []float32 {
	out := make([]float32, len(codes))
	scale := magnitude / Levels

	for i, c := range codes {
		out[i] = float32(int8(c)) * scale
	}

	return out
}
