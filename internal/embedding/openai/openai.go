// Package openai implements the embedder against an OpenAI-compatible
// embeddings endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Config configures the embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
}

// Client produces embeddings through the remote API. The vector dimension is
// whatever the model returns, learned from the first successful call. Embed
// runs concurrently from request handlers, so the dimension is an atomic.
type Client struct {
	api        *openai.Client
	model      string
	timeout    time.Duration
	dimension  atomic.Int64
	maxRetries int
}

// NewClient creates an embeddings client. A missing API key is a fatal
// configuration error.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	cc := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:        openai.NewClientWithConfig(cc),
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: 3,
	}, nil
}

func (c *Client) Name() string { return "openai" }

// Prepare is a no-op: the remote model needs no corpus pass.
func (c *Client) Prepare(corpus []string) error { return nil }

// Dimension is zero until the first successful Embed.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

// Embed returns the embedding vector for text, retrying transient API
// failures with exponential backoff.
func (c *Client) Embed(text string) ([]float64, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelay(attempt - 1))
		}
		vec, err := c.embedOnce(text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) embedOnce(text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding returned")
	}
	raw := resp.Data[0].Embedding
	vec := make([]float64, len(raw))
	for i, v := range raw {
		vec[i] = float64(v)
	}
	c.dimension.CompareAndSwap(0, int64(len(vec)))
	return vec, nil
}

// retryable treats rate limits and server-side failures as transient.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	// Transport-level errors (timeouts, refused connections) are worth a retry.
	return true
}

func retryDelay(attempt int) time.Duration {
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
