package textutil

import (
	"fmt"
	"math"
)

// NormalizeVector checks the embedding against the expected dimension and
// scales it to unit length. The original L2 norm is returned alongside so it
// can be persisted with the chunk.
func NormalizeVector(embedding []float32, expectedDim int) ([]float32, float64, error) {
	if len(embedding) != expectedDim {
		return nil, 0, fmt.Errorf("embedding dimension %d does not match expected %d", len(embedding), expectedDim)
	}

	var sum float64
	for _, v := range embedding {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsInf(norm, 0) || math.IsNaN(norm) {
		return nil, 0, fmt.Errorf("embedding norm must be finite and non-zero")
	}

	normalized := make([]float32, len(embedding))
	for i, v := range embedding {
		normalized[i] = float32(float64(v) / norm)
	}
	return normalized, norm, nil
}

// Dot returns the inner product of two vectors. For unit vectors this is the
// cosine similarity.
func Dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
