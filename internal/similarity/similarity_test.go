package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
)

func TestCosine(t *testing.T) {
	a := content.Vector{1, 0, 0}
	b := content.Vector{0, 1, 0}
	neg := content.Vector{-1, 0, 0}

	same, err := Cosine(a, a)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, same, 1e-9)

	orth, err := Cosine(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, orth, 1e-9)

	opp, err := Cosine(a, neg)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, opp, 1e-9)
}

func TestCosineIsSymmetric(t *testing.T) {
	a := content.Vector{0.3, 0.8, 0.1, 0.5}
	b := content.Vector{0.9, 0.2, 0.4, 0.7}

	ab, err := Cosine(a, b)
	require.NoError(t, err)
	ba, err := Cosine(b, a)
	require.NoError(t, err)
	assert.InDelta(t, ab, ba, 1e-12)
}

func TestCosineLengthMismatch(t *testing.T) {
	_, err := Cosine(content.Vector{1, 2}, content.Vector{1, 2, 3})
	assert.Error(t, err)
}

func TestCosineZeroVector(t *testing.T) {
	score, err := Cosine(content.Vector{0, 0, 0}, content.Vector{1, 2, 3})
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestTopK(t *testing.T) {
	query := content.Vector{1, 0}
	candidates := map[string]content.Vector{
		"close":    {0.9, 0.1},
		"far":      {0, 1},
		"opposite": {-1, 0},
		"exact":    {1, 0},
		"short":    {1},
	}

	got := TopK(query, candidates, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "exact", got[0].ItemID)
	assert.Equal(t, "close", got[1].ItemID)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestTopKEdgeCases(t *testing.T) {
	assert.Nil(t, TopK(content.Vector{1}, nil, 3))
	assert.Nil(t, TopK(content.Vector{1}, map[string]content.Vector{"a": {1}}, 0))

	// k larger than candidate count returns everything.
	got := TopK(content.Vector{1}, map[string]content.Vector{"a": {1}}, 10)
	assert.Len(t, got, 1)
}
