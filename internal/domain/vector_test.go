package domain_test

import (
	"testing"

	"quality-guardian/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	t.Run("Identical vectors", func(t *testing.T) {
		v := []float32{0.5, 0.2, 0.8}
		assert.InDelta(t, 1.0, domain.CosineSimilarity(v, v), 1e-6)
	})

	t.Run("Orthogonal vectors", func(t *testing.T) {
		a := []float32{1, 0}
		b := []float32{0, 1}
		assert.InDelta(t, 0.0, domain.CosineSimilarity(a, b), 1e-6)
	})

	t.Run("Opposite vectors", func(t *testing.T) {
		a := []float32{1, 1}
		b := []float32{-1, -1}
		assert.InDelta(t, -1.0, domain.CosineSimilarity(a, b), 1e-6)
	})

	t.Run("Mismatched lengths", func(t *testing.T) {
		assert.Zero(t, domain.CosineSimilarity([]float32{1}, []float32{1, 2}))
	})

	t.Run("Zero vector", func(t *testing.T) {
		assert.Zero(t, domain.CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
	})
}
