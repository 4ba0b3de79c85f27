// Package vecmath provides small float32 vector helpers for the embedding
// pipeline.
package vecmath

import "math"

// Dot returns the inner product of a and b, or 0 if the lengths differ.
func Dot(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	return float32(math.Sqrt(float64(sum)))
}

// NormalizeL2 scales v to unit length in place, so that inner-product
// search over normalized vectors equals cosine similarity. Zero vectors
// are left unchanged.
func NormalizeL2(v []float32) {
	n := Norm(v)
	if n == 0 {
		return
	}
	for i := range v {
		v[i] /= n
	}
}

// CosineSimilarity returns the cosine of the angle between a and b,
// in [-1, 1]. Returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float32 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}
