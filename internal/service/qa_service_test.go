package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/cache"
	"ragqa/internal/domain"
)

type stubEmbedder struct {
	vector []float64
}

func (s *stubEmbedder) Name() string                  { return "stub" }
func (s *stubEmbedder) Prepare(corpus []string) error { return nil }
func (s *stubEmbedder) Dimension() int                { return len(s.vector) }
func (s *stubEmbedder) Embed(text string) ([]float64, error) {
	out := make([]float64, len(s.vector))
	copy(out, s.vector)
	return out, nil
}

type stubVectorStore struct {
	results     []domain.SearchResult
	searchCalls int
}

func (s *stubVectorStore) Init(dimension int) error                          { return nil }
func (s *stubVectorStore) Upsert(chunks []domain.Chunk, v [][]float64) error { return nil }
func (s *stubVectorStore) Clear() error                                      { return nil }
func (s *stubVectorStore) Search(vector []float64, topK int) ([]domain.SearchResult, error) {
	s.searchCalls++
	return s.results, nil
}

type stubGenerator struct {
	answer string
	err    error
	calls  int
}

func (s *stubGenerator) Model() string { return "gpt-4o-mini" }
func (s *stubGenerator) Generate(ctx context.Context, question string, results []domain.SearchResult) (string, error) {
	s.calls++
	return s.answer, s.err
}

// expiringStore is an in-memory Store with TTL expiry driven by a test clock.
type expiringStore struct {
	data    map[string]expiringEntry
	now     time.Time
	lastTTL time.Duration
}

type expiringEntry struct {
	value    []byte
	deadline time.Time
}

func newExpiringStore() *expiringStore {
	return &expiringStore{data: map[string]expiringEntry{}, now: time.Now()}
}

func (s *expiringStore) Get(ctx context.Context, key string) ([]byte, bool) {
	e, ok := s.data[key]
	if !ok || s.now.After(e.deadline) {
		return nil, false
	}
	return e.value, true
}

func (s *expiringStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	s.lastTTL = ttl
	s.data[key] = expiringEntry{value: value, deadline: s.now.Add(ttl)}
}

func sigmoidResults() []domain.SearchResult {
	return []domain.SearchResult{
		{Chunk: domain.Chunk{DocumentID: "d1", ChunkID: "d1:0", Source: "ml_basics.txt", Text: "A função sigmoid mapeia valores para (0, 1)."}, Score: 0.91},
		{Chunk: domain.Chunk{DocumentID: "d1", ChunkID: "d1:1", Source: "ml_basics.txt", Text: "Funções de ativação introduzem não linearidade."}, Score: 0.82},
	}
}

func newTestService(t *testing.T, store cache.Store, gen *stubGenerator) (*QAService, *stubVectorStore) {
	t.Helper()
	vs := &stubVectorStore{results: sigmoidResults()}
	var answers *cache.QueryCache
	if store != nil {
		answers = cache.NewQueryCache(store, cache.NewKeyDeriver(""), time.Hour, nil)
	}
	svc := New(nil, &stubEmbedder{vector: []float64{0.1, 0.2, 0.3}}, vs, nil, gen, answers, Config{
		TopK:                3,
		SimilarityThreshold: 0.7,
		EmbeddingModel:      "stub",
	}, nil)
	return svc, vs
}

func TestAskCacheMissRunsPipeline(t *testing.T) {
	store := newExpiringStore()
	gen := &stubGenerator{answer: "A sigmoid mapeia qualquer valor real para o intervalo (0, 1)."}
	svc, vs := newTestService(t, store, gen)
	ctx := context.Background()

	ans, err := svc.AskWithTTL(ctx, "O que é a função Sigmoid?", 3600*time.Second)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, ans.Status)
	assert.Equal(t, gen.answer, ans.Answer)
	assert.Equal(t, []string{"ml_basics.txt"}, ans.Sources)
	assert.Equal(t, "gpt-4o-mini", ans.Model)
	assert.False(t, ans.Cached)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, vs.searchCalls)
	assert.Len(t, store.data, 1)
	assert.Equal(t, 3600*time.Second, store.lastTTL)
}

func TestAskCacheHitSkipsPipeline(t *testing.T) {
	store := newExpiringStore()
	gen := &stubGenerator{answer: "resposta"}
	svc, vs := newTestService(t, store, gen)
	ctx := context.Background()

	_, err := svc.Ask(ctx, "O que é a função Sigmoid?")
	require.NoError(t, err)

	// Same question modulo case and whitespace must hit.
	ans, err := svc.Ask(ctx, "  o que é a   função sigmoid?  ")
	require.NoError(t, err)
	assert.True(t, ans.Cached)
	assert.Equal(t, "resposta", ans.Answer)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, vs.searchCalls)

	stats := svc.Stats()
	assert.Equal(t, 2, stats.TotalQueries)
	assert.Equal(t, 1, stats.CacheHits)
}

func TestAskExpiredEntryRunsPipelineAgain(t *testing.T) {
	store := newExpiringStore()
	gen := &stubGenerator{answer: "resposta"}
	svc, _ := newTestService(t, store, gen)
	ctx := context.Background()

	_, err := svc.AskWithTTL(ctx, "O que é a função Sigmoid?", 3600*time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, gen.calls)

	store.now = store.now.Add(3601 * time.Second)

	ans, err := svc.Ask(ctx, "O que é a função Sigmoid?")
	require.NoError(t, err)
	assert.False(t, ans.Cached)
	assert.Equal(t, 2, gen.calls)
}

func TestAskWithoutCache(t *testing.T) {
	gen := &stubGenerator{answer: "resposta"}
	svc, _ := newTestService(t, nil, gen)

	ans, err := svc.Ask(context.Background(), "pergunta")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, ans.Status)

	ans, err = svc.Ask(context.Background(), "pergunta")
	require.NoError(t, err)
	assert.False(t, ans.Cached)
	assert.Equal(t, 2, gen.calls)
}

func TestAskGeneratorFailure(t *testing.T) {
	store := newExpiringStore()
	gen := &stubGenerator{err: errors.New("model overloaded")}
	svc, _ := newTestService(t, store, gen)

	ans, err := svc.Ask(context.Background(), "pergunta")
	require.Error(t, err)
	require.NotNil(t, ans)
	assert.Equal(t, domain.StatusError, ans.Status)
	assert.Contains(t, ans.Error, "model overloaded")
	// Failed answers are never cached.
	assert.Empty(t, store.data)
}

func TestSearchFiltersByThreshold(t *testing.T) {
	gen := &stubGenerator{answer: "resposta"}
	svc, vs := newTestService(t, nil, gen)
	vs.results = []domain.SearchResult{
		{Chunk: domain.Chunk{ChunkID: "a"}, Score: 0.95},
		{Chunk: domain.Chunk{ChunkID: "b"}, Score: 0.4},
	}

	results, err := svc.Search("pergunta", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Chunk.ChunkID)
}

func TestSearchLexicalFallbackOnZeroVector(t *testing.T) {
	gen := &stubGenerator{answer: "resposta"}
	vs := &stubVectorStore{}
	svc := New(nil, &stubEmbedder{vector: []float64{0, 0, 0}}, vs, nil, gen, nil, Config{
		TopK:                2,
		SimilarityThreshold: 0.7,
	}, nil)
	svc.chunks = []domain.Chunk{
		{ChunkID: "c1", Text: "gradient descent minimizes the loss"},
		{ChunkID: "c2", Text: "unrelated cooking recipe"},
	}

	results, err := svc.Search("what is gradient descent", 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "c1", results[0].Chunk.ChunkID)
	assert.Zero(t, vs.searchCalls)
}

func TestSourcesDeduplicated(t *testing.T) {
	results := []domain.SearchResult{
		{Chunk: domain.Chunk{Source: "a.txt"}},
		{Chunk: domain.Chunk{Source: "b.txt"}},
		{Chunk: domain.Chunk{Source: "a.txt"}},
		{Chunk: domain.Chunk{DocumentID: "doc3"}},
	}
	assert.Equal(t, []string{"a.txt", "b.txt", "doc3"}, sources(results))
}
