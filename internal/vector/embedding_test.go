package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedding_Magnitude(t *testing.T) {
	e := Embedding{3, 4}
	assert.InDelta(t, 5.0, e.Magnitude(), 1e-6)
}

func TestEmbedding_Normalize_ZeroVector(t *testing.T) {
	e := Embedding{0, 0, 0}
	out := e.Normalize()
	assert.Equal(t, e, out)
}

func TestEmbedding_L2Distance(t *testing.T) {
	a := Embedding{0, 0}
	b := Embedding{3, 4}
	d, err := a.L2Distance(b)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, d, 1e-6)
}

func TestEmbedding_L2Distance_DimensionMismatch(t *testing.T) {
	a := Embedding{1, 2}
	b := Embedding{1, 2, 3}
	_, err := a.L2Distance(b)
	require.Error(t, err)
}

func TestEmbedding_CosineSimilarity_ZeroMagnitude(t *testing.T) {
	a := Embedding{0, 0}
	b := Embedding{1, 1}
	sim, err := a.CosineSimilarity(b)
	require.NoError(t, err)
	assert.Equal(t, float32(0), sim)
}
