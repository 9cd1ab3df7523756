// Package math32 provides scalar float32 vector kernels.
// This is an internal package - external users should use the record package.
package math32

import "math"

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	var ret float32
	for i := range a {
		ret += a[i] * b[i]
	}

	return ret
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var distance float32
	for i := range a {
		distance += (a[i] - b[i]) * (a[i] - b[i])
	}

	return distance
}

// Norm calculates the L2 norm of v.
func Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// PackedSquaredL2 calculates the squared L2 distance between a query vector
// and a quantized vector without materializing the reconstruction.
//
// codes holds int8 quantization levels (stored as raw bytes), magnitude is
// the L2 norm of the original vector. Each component reconstructs as
// (int8(codes[i]) / 127) * magnitude; the reconstruction is fused into the
// accumulation loop so both slices are read contiguously in lockstep.
//
// Assumes len(query) == len(codes) (caller's responsibility).
func PackedSquaredL2(query []float32, codes []byte, magnitude float32) float32 {
	scale := magnitude / 127

	var distance float32
	for i, c := range codes {
		d := query[i] - float32(int8(c))*scale
		distance += d * d
	}

	return distance
}
