// Package memory keeps the vector index in process memory. Search is a
// brute-force scan, which is fine at the corpus sizes a single ingest run
// produces.
package memory

import (
	"errors"
	"sort"
	"sync"

	"ragqa/internal/domain"
)

// Storage indexes chunks with their vectors. Vectors are expected to be
// L2-normalized, so the dot product is the cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	entries   []entry
}

type entry struct {
	chunk  domain.Chunk
	vector []float64
}

func NewStorage() *Storage { return &Storage{} }

// Init fixes the vector dimension and drops any existing index.
func (s *Storage) Init(dimension int) error {
	if dimension <= 0 {
		return errors.New("memory store: invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.entries = nil
	return nil
}

// Upsert appends chunks with their vectors to the index.
func (s *Storage) Upsert(chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("memory store: chunks and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return errors.New("memory store: vector dimension mismatch")
		}
	}
	for i := range chunks {
		s.entries = append(s.entries, entry{chunk: chunks[i], vector: vectors[i]})
	}
	return nil
}

// Search returns the topK most similar chunks to vector, best first.
func (s *Storage) Search(vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	results := make([]domain.SearchResult, len(s.entries))
	for i, e := range s.entries {
		results[i] = domain.SearchResult{Chunk: e.chunk, Score: dot(e.vector, vector)}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

// Clear drops the index but keeps the dimension.
func (s *Storage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
