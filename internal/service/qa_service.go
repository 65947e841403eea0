package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"ragqa/internal/cache"
	"ragqa/internal/domain"
)

// Stats holds service-level counters.
type Stats struct {
	TotalDocuments   int     `json:"total_documents"`
	TotalChunks      int     `json:"total_chunks"`
	TotalQueries     int     `json:"total_queries"`
	CacheHits        int     `json:"cache_hits"`
	AvgAnswerSeconds float64 `json:"avg_answer_seconds"`
}

// Config holds the retrieval parameters of the service. TopK and
// SimilarityThreshold also feed the cache key: answers produced under
// different settings never collide.
type Config struct {
	TopK                int
	SimilarityThreshold float64
	SummaryMaxSentences int
	EmbeddingModel      string
}

// QAService orchestrates ingestion and question answering: cache lookup
// first, then retrieval plus generation on a miss, then cache population.
// Cache failures never block answering; pipeline failures do surface.
type QAService struct {
	chunker    domain.Chunker
	embedder   domain.Embedder
	store      domain.VectorStore
	summarizer domain.Summarizer
	generator  domain.Generator
	answers    *cache.QueryCache // nil disables caching
	snapshot   cache.KeySnapshot
	cfg        Config
	logger     *slog.Logger

	mu              sync.Mutex
	chunks          []domain.Chunk
	stats           Stats
	totalAnswerSecs float64
}

// New assembles the service. answers may be nil to run without caching.
func New(chunker domain.Chunker, embedder domain.Embedder, store domain.VectorStore, summarizer domain.Summarizer, generator domain.Generator, answers *cache.QueryCache, cfg Config, logger *slog.Logger) *QAService {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.SummaryMaxSentences <= 0 {
		cfg.SummaryMaxSentences = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	snap := cache.KeySnapshot{
		EmbeddingModel:      cfg.EmbeddingModel,
		TopK:                cfg.TopK,
		SimilarityThreshold: cfg.SimilarityThreshold,
	}
	if generator != nil {
		snap.GenerationModel = generator.Model()
	}
	return &QAService{
		chunker:    chunker,
		embedder:   embedder,
		store:      store,
		summarizer: summarizer,
		generator:  generator,
		answers:    answers,
		snapshot:   snap,
		cfg:        cfg,
		logger:     logger,
	}
}

// IngestDocuments loads .txt files (globs allowed), chunks and embeds them,
// indexes the vectors, and returns a corpus summary.
func (s *QAService) IngestDocuments(paths []string) (string, error) {
	var documents []domain.Document
	for _, p := range paths {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			if !strings.HasSuffix(strings.ToLower(m), ".txt") {
				continue
			}
			data, err := os.ReadFile(m)
			if err != nil {
				return "", err
			}
			id := hashString(m)
			documents = append(documents, domain.Document{ID: id, Path: m, Content: string(data)})
		}
	}
	if len(documents) == 0 {
		return "", fmt.Errorf("no .txt documents found")
	}
	var allChunks []domain.Chunk
	var allTexts []string
	var allTextConcat strings.Builder
	for _, d := range documents {
		chunks, err := s.chunker.Chunk(d)
		if err != nil {
			return "", err
		}
		for _, ch := range chunks {
			allChunks = append(allChunks, ch)
			allTexts = append(allTexts, ch.Text)
		}
		allTextConcat.WriteString("\n")
		allTextConcat.WriteString(d.Content)
	}
	// Keep chunks for fallback ranking
	s.mu.Lock()
	s.chunks = allChunks
	s.stats.TotalDocuments += len(documents)
	s.stats.TotalChunks += len(allChunks)
	s.mu.Unlock()

	if err := s.embedder.Prepare(allTexts); err != nil {
		return "", err
	}
	if err := s.store.Init(s.embedder.Dimension()); err != nil {
		return "", err
	}
	vectors := make([][]float64, len(allChunks))
	for i := range allChunks {
		vec, err := s.embedder.Embed(allChunks[i].Text)
		if err != nil {
			return "", err
		}
		vectors[i] = vec
	}
	if err := s.store.Clear(); err != nil {
		return "", err
	}
	if err := s.store.Upsert(allChunks, vectors); err != nil {
		return "", err
	}
	s.logger.Info("documents ingested", "documents", len(documents), "chunks", len(allChunks))
	summary, err := s.summarizer.Summarize(allTextConcat.String(), s.cfg.SummaryMaxSentences)
	if err != nil {
		return "", err
	}
	return summary, nil
}

// Ask answers a question through the cached pipeline with the default TTL.
func (s *QAService) Ask(ctx context.Context, question string) (*domain.Answer, error) {
	return s.AskWithTTL(ctx, question, 0)
}

// AskWithTTL answers a question; a positive ttl overrides the cache default
// for the stored answer. On a pipeline failure the returned answer carries
// the error status alongside the error itself.
func (s *QAService) AskWithTTL(ctx context.Context, question string, ttl time.Duration) (*domain.Answer, error) {
	start := time.Now()
	s.mu.Lock()
	s.stats.TotalQueries++
	s.mu.Unlock()

	if s.answers != nil {
		if ans, ok := s.answers.Lookup(ctx, question, s.snapshot); ok {
			s.mu.Lock()
			s.stats.CacheHits++
			s.mu.Unlock()
			return ans, nil
		}
	}

	results, err := s.Search(question, s.cfg.TopK)
	if err != nil {
		return s.errorAnswer(question, start, err), err
	}
	text, err := s.generator.Generate(ctx, question, results)
	if err != nil {
		return s.errorAnswer(question, start, err), err
	}

	ans := &domain.Answer{
		Question:       question,
		Answer:         text,
		Sources:        sources(results),
		Model:          s.generator.Model(),
		Status:         domain.StatusSuccess,
		ProcessingTime: time.Since(start).Seconds(),
	}
	s.recordAnswerTime(ans.ProcessingTime)
	if s.answers != nil {
		s.answers.Store(ctx, question, s.snapshot, ans, ttl)
	}
	return ans, nil
}

// Search retrieves the topK most similar chunks above the similarity
// threshold, falling back to lexical overlap ranking when the embedding
// yields nothing usable.
func (s *QAService) Search(query string, topK int) ([]domain.SearchResult, error) {
	vec, err := s.embedder.Embed(query)
	if err != nil {
		return nil, err
	}
	// Detect zero vector (no tokens)
	zero := true
	for _, v := range vec {
		if v != 0 {
			zero = false
			break
		}
	}
	if zero {
		return s.lexicalSearch(query, topK), nil
	}
	res, err := s.store.Search(vec, topK)
	if err != nil {
		return nil, err
	}
	filtered := res[:0]
	for _, r := range res {
		if r.Score >= s.cfg.SimilarityThreshold {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return s.lexicalSearch(query, topK), nil
	}
	return filtered, nil
}

// Stats returns a snapshot of the service counters.
func (s *QAService) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	answered := st.TotalQueries - st.CacheHits
	if answered > 0 {
		st.AvgAnswerSeconds = s.totalAnswerSecs / float64(answered)
	}
	return st
}

func (s *QAService) errorAnswer(question string, start time.Time, err error) *domain.Answer {
	s.logger.Error("failed to answer question", "question", question, "error", err)
	return &domain.Answer{
		Question:       question,
		Status:         domain.StatusError,
		Error:          err.Error(),
		ProcessingTime: time.Since(start).Seconds(),
	}
}

func (s *QAService) recordAnswerTime(secs float64) {
	s.mu.Lock()
	s.totalAnswerSecs += secs
	s.mu.Unlock()
}

// sources returns the source identifiers of the results, deduplicated and
// in retrieval order.
func sources(results []domain.SearchResult) []string {
	seen := make(map[string]struct{}, len(results))
	out := make([]string, 0, len(results))
	for _, r := range results {
		src := r.Chunk.Source
		if src == "" {
			src = r.Chunk.DocumentID
		}
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	return out
}

var (
	unicodeWordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

func (s *QAService) lexicalSearch(query string, topK int) []domain.SearchResult {
	s.mu.Lock()
	chunks := s.chunks
	s.mu.Unlock()

	qset := toTokenSet(query)
	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(chunks))
	for i, ch := range chunks {
		scores[i] = pair{i, overlapOchiai(qset, ch.Text)}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if topK <= 0 {
		topK = 5
	}
	if topK > len(scores) {
		topK = len(scores)
	}
	out := make([]domain.SearchResult, 0, topK)
	for i := 0; i < topK; i++ {
		p := scores[i]
		out = append(out, domain.SearchResult{Chunk: chunks[p.idx], Score: p.score})
	}
	return out
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func overlapOchiai(qset map[string]struct{}, text string) float64 {
	stoks := unicodeWordRe.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(stoks))
	inter := 0
	for _, t := range stoks {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	if len(qset) == 0 || len(seen) == 0 {
		return 0
	}
	// Ochiai coefficient: |A∩B| / sqrt(|A||B|)
	qa := float64(len(qset))
	ba := float64(len(seen))
	return float64(inter) / (math.Sqrt(qa) * math.Sqrt(ba))
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
