package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func TestFormatContext(t *testing.T) {
	results := []domain.SearchResult{
		{Chunk: domain.Chunk{Source: "ml_basics.txt", Text: "A sigmoid mapeia valores para (0, 1)."}},
		{Chunk: domain.Chunk{Text: "Texto sem fonte."}},
	}
	got := FormatContext(results)
	assert.Contains(t, got, "Documento 1 (Fonte: ml_basics.txt):\nA sigmoid mapeia valores para (0, 1).")
	assert.Contains(t, got, "Documento 2 (Fonte: Desconhecida):\nTexto sem fonte.")
}

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt("O que é a função Sigmoid?", []domain.SearchResult{
		{Chunk: domain.Chunk{Source: "a.txt", Text: "contexto"}},
	})
	assert.Contains(t, got, "Pergunta: O que é a função Sigmoid?")
	assert.Contains(t, got, "Documento 1 (Fonte: a.txt)")
	assert.Contains(t, got, "Responda em português do Brasil")
}

func TestNewOpenAIRequiresAPIKey(t *testing.T) {
	t.Setenv("TEST_MISSING_KEY", "")
	_, err := NewOpenAI(Config{APIKeyEnv: "TEST_MISSING_KEY"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_MISSING_KEY")
}

func TestNewOpenAIDefaults(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-test")
	g, err := NewOpenAI(Config{APIKeyEnv: "TEST_API_KEY"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", g.Model())
}
