package quantization

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMagnitude(t *testing.T) {
	assert.Equal(t, float32(5), Magnitude([]float32{3, 4}))
	assert.Equal(t, float32(0), Magnitude([]float32{0, 0, 0}))
}

func TestQuantizeRoundTripBound(t *testing.T) {
	vectors := [][]float32{
		{3, 4, 0},
		{1, 0, 0},
		{-0.5, 0.25, 0.75, -1},
		{1000, -1000, 0.001},
	}

	for _, v := range vectors {
		m := Magnitude(v)
		codes := Quantize(make([]byte, len(v)), v, m)
		recon := Dequantize(codes, m)

		// Per-component error is bounded by magnitude/Levels.
		eps := m / Levels
		for i := range v {
			require.InDelta(t, v[i], recon[i], float64(eps)+1e-6, "component %d of %v", i, v)
		}
	}
}

func TestQuantizeZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	codes := Quantize(make([]byte, len(v)), v, 0)

	for _, c := range codes {
		require.Equal(t, byte(0), c)
	}

	recon := Dequantize(codes, 0)
	assert.Equal(t, v, recon)
}

func TestQuantizeExtremesHitFullLevels(t *testing.T) {
	v := []float32{1, -1}
	m := Magnitude(v)

	codes := Quantize(make([]byte, len(v)), v, m)

	// Components at +/- magnitude/sqrt(2) land short of full scale,
	// but a single-component vector saturates exactly.
	single := []float32{2.5}
	sc := Quantize(make([]byte, 1), single, Magnitude(single))
	assert.Equal(t, int8(Levels), int8(sc[0]))

	neg := []float32{-2.5}
	nc := Quantize(make([]byte, 1), neg, Magnitude(neg))
	assert.Equal(t, int8(-Levels), int8(nc[0]))

	// And clamping keeps everything in range.
	for _, c := range codes {
		lvl := int8(c)
		require.True(t, lvl >= -Levels && lvl <= Levels)
	}
}

func TestDequantizeIsStable(t *testing.T) {
	// Quantizing a reconstruction must be lossless.
	v := []float32{0.3, -0.7, 0.2, 0.9}
	m := Magnitude(v)

	codes := Quantize(make([]byte, len(v)), v, m)
	recon := Dequantize(codes, m)

	codes2 := Quantize(make([]byte, len(recon)), recon, m)
	recon2 := Dequantize(codes2, m)

	for i := range recon {
		require.True(t, math.Abs(float64(recon[i]-recon2[i])) < 1e-6)
	}
}
