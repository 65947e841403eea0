// Package generator produces answers to questions conditioned on retrieved
// context, via an OpenAI-compatible chat completion API.
package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"ragqa/internal/domain"
)

// Config configures the OpenAI-compatible generation client.
type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAI implements domain.Generator over the chat completions endpoint.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

// NewOpenAI creates a generation client. A missing API key is a fatal
// configuration error.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	cc := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(cc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}, nil
}

// Model returns the generation model identifier.
func (g *OpenAI) Model() string { return g.model }

// Generate answers the question using only the retrieved context.
func (g *OpenAI) Generate(ctx context.Context, question string, results []domain.SearchResult) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: BuildPrompt(question, results),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

const answerTemplate = `Contexto relevante: %s

Pergunta: %s

Use o contexto acima para responder à pergunta. Se a informação não estiver no contexto, responda "Não encontrei informação suficiente no contexto".
Responda em português do Brasil e de forma objetiva.

Resposta:`

// BuildPrompt renders the full instruction sent to the model.
func BuildPrompt(question string, results []domain.SearchResult) string {
	return fmt.Sprintf(answerTemplate, FormatContext(results), question)
}

// FormatContext renders retrieved chunks as numbered source blocks.
func FormatContext(results []domain.SearchResult) string {
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		source := r.Chunk.Source
		if source == "" {
			source = "Desconhecida"
		}
		blocks = append(blocks, fmt.Sprintf("Documento %d (Fonte: %s):\n%s", i+1, source, r.Chunk.Text))
	}
	return strings.Join(blocks, "\n\n")
}
