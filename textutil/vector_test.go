package textutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVector(t *testing.T) {
	normalized, norm, err := NormalizeVector([]float32{3, 4}, 2)
	require.NoError(t, err)

	assert.InDelta(t, 5.0, norm, 1e-9)
	assert.InDelta(t, 0.6, float64(normalized[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(normalized[1]), 1e-6)

	var length float64
	for _, v := range normalized {
		length += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(length), 1e-6)
}

func TestNormalizeVectorDimensionMismatch(t *testing.T) {
	_, _, err := NormalizeVector([]float32{1, 2, 3}, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestNormalizeVectorZeroNorm(t *testing.T) {
	_, _, err := NormalizeVector([]float32{0, 0, 0}, 3)
	require.Error(t, err)
}

func TestDot(t *testing.T) {
	assert.InDelta(t, 11.0, Dot([]float32{1, 2, 3}, []float32{3, 1, 2}), 1e-9)
	assert.InDelta(t, 0.0, Dot([]float32{1, 0}, []float32{0, 1}), 1e-9)

	// Mismatched lengths use the shorter vector.
	assert.InDelta(t, 2.0, Dot([]float32{2}, []float32{1, 5}), 1e-9)
}
