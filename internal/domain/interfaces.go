package domain

import "context"

// Document represents a single text file loaded into the system.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is a semantically meaningful part of a document used for indexing.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Source     string
	Text       string
	Index      int
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Answer statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Answer is a generated response to a question together with the sources it
// was grounded on. Answers are what the response cache stores. The Cached
// flag is set on cache retrieval only and is never persisted as true.
type Answer struct {
	Question       string   `json:"question"`
	Answer         string   `json:"answer"`
	Sources        []string `json:"sources"`
	Model          string   `json:"model,omitempty"`
	Status         string   `json:"status"`
	Error          string   `json:"error,omitempty"`
	Cached         bool     `json:"cached,omitempty"`
	ProcessingTime float64  `json:"processing_time,omitempty"`
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(text string) ([]float64, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// VectorStore persists vectors and supports similarity search.
type VectorStore interface {
	Init(dimension int) error
	Upsert(chunks []Chunk, vectors [][]float64) error
	Search(vector []float64, topK int) ([]SearchResult, error)
	Clear() error
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// Generator produces an answer to a question conditioned on retrieved context.
type Generator interface {
	Model() string
	Generate(ctx context.Context, question string, results []SearchResult) (string, error)
}
