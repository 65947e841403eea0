package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func TestStorageSearchRanksBySimilarity(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.Init(2))
	require.NoError(t, s.Upsert(
		[]domain.Chunk{{ChunkID: "x"}, {ChunkID: "y"}, {ChunkID: "z"}},
		[][]float64{{1, 0}, {0, 1}, {0.7, 0.7}},
	))

	results, err := s.Search([]float64{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "x", results[0].Chunk.ChunkID)
	assert.Equal(t, "z", results[1].Chunk.ChunkID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestStorageUpsertValidation(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.Init(2))

	assert.Error(t, s.Upsert([]domain.Chunk{{ChunkID: "x"}}, nil))
	assert.Error(t, s.Upsert([]domain.Chunk{{ChunkID: "x"}}, [][]float64{{1, 2, 3}}))
	assert.Error(t, s.Init(0))
}

func TestStorageClear(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.Init(1))
	require.NoError(t, s.Upsert([]domain.Chunk{{ChunkID: "x"}}, [][]float64{{1}}))
	require.NoError(t, s.Clear())

	results, err := s.Search([]float64{1}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
