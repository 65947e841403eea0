// Package qdrant implements the vector store over Qdrant's REST API with
// cosine distance. Point IDs are derived by hashing the chunk ID, since
// Qdrant only accepts numeric or UUID identifiers.
package qdrant

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"

	"ragqa/internal/domain"
)

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Storage talks to one Qdrant collection.
type Storage struct {
	baseURL    string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init ensures the collection exists with the given dimension. Qdrant
// answers 200 for an existing collection with the same schema.
func (s *Storage) Init(dimension int) error {
	if dimension <= 0 {
		return errors.New("qdrant: invalid dimension")
	}
	s.dimension = dimension
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.do(http.MethodPut, s.collectionURL(""), body, nil)
}

// Upsert writes chunks and their vectors as points, waiting for the write
// to be applied so a following Search sees them.
func (s *Storage) Upsert(chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return errors.New("qdrant: chunks and vectors length mismatch")
	}
	points := make([]map[string]any, len(chunks))
	for i, ch := range chunks {
		points[i] = map[string]any{
			"id":     xxhash.Sum64String(ch.ChunkID),
			"vector": vectors[i],
			"payload": map[string]any{
				"document_id": ch.DocumentID,
				"chunk_id":    ch.ChunkID,
				"source":      ch.Source,
				"index":       ch.Index,
				"text":        ch.Text,
			},
		}
	}
	return s.do(http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil)
}

// Search returns the topK nearest points with their payloads.
func (s *Storage) Search(vector []float64, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.SearchResult{Chunk: chunkFromPayload(r.Payload), Score: r.Score})
	}
	return results, nil
}

// Clear drops the collection. Best-effort: a missing collection is fine.
func (s *Storage) Clear() error {
	req, err := http.NewRequest(http.MethodDelete, s.collectionURL(""), nil)
	if err != nil {
		return err
	}
	s.auth(req)
	resp, err := s.client.Do(req)
	if err == nil {
		resp.Body.Close()
	}
	return nil
}

func chunkFromPayload(payload map[string]any) domain.Chunk {
	var chunk domain.Chunk
	if v, ok := payload["document_id"].(string); ok {
		chunk.DocumentID = v
	}
	if v, ok := payload["chunk_id"].(string); ok {
		chunk.ChunkID = v
	}
	if v, ok := payload["source"].(string); ok {
		chunk.Source = v
	}
	if v, ok := payload["index"].(float64); ok {
		chunk.Index = int(v)
	}
	if v, ok := payload["text"].(string); ok {
		chunk.Text = v
	}
	return chunk
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.baseURL, s.collection, suffix)
}

func (s *Storage) auth(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
}

func (s *Storage) do(method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
