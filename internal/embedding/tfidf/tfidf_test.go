package tfidf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedderRequiresPrepare(t *testing.T) {
	e := NewEmbedder()
	_, err := e.Embed("anything")
	assert.Error(t, err)
	assert.Zero(t, e.Dimension())
}

func TestEmbedderVectorsAreNormalized(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{
		"gradient descent minimizes loss",
		"sigmoid squashes values",
		"dropout regularizes networks",
	}))
	require.Greater(t, e.Dimension(), 0)

	vec, err := e.Embed("gradient descent")
	require.NoError(t, err)
	require.Len(t, vec, e.Dimension())

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestEmbedderSimilarTextScoresHigher(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{
		"gradient descent minimizes loss",
		"cake recipes need sugar",
	}))

	query, err := e.Embed("gradient descent")
	require.NoError(t, err)
	match, err := e.Embed("gradient descent minimizes loss")
	require.NoError(t, err)
	other, err := e.Embed("cake recipes need sugar")
	require.NoError(t, err)

	assert.Greater(t, dot(query, match), dot(query, other))
}

func TestEmbedderUnknownTokensEmbedToZero(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{"gradient descent"}))

	vec, err := e.Embed("completely unrelated words")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestEmbedderStopwordsFiltered(t *testing.T) {
	e := NewEmbedder()
	err := e.Prepare([]string{"the of and não para"})
	assert.Error(t, err)
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
