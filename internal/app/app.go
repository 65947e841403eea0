// Package app assembles the application components from configuration.
// Both commands (TUI and HTTP server) build the same core through here.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"ragqa/internal/cache"
	filecache "ragqa/internal/cache/file"
	rediscache "ragqa/internal/cache/redis"
	"ragqa/internal/chunker"
	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/embedding/openai"
	"ragqa/internal/embedding/tfidf"
	"ragqa/internal/generator"
	"ragqa/internal/service"
	"ragqa/internal/summarizer"
	"ragqa/internal/vectorstore/memory"
	"ragqa/internal/vectorstore/qdrant"
)

// App holds the assembled components and what needs closing on shutdown.
type App struct {
	Service *service.QAService
	Cache   cacheCloser // nil when caching is disabled
	Logger  *slog.Logger
}

type cacheCloser interface {
	cache.Store
	State() string
	Close() error
}

// NewLogger builds the process logger.
func NewLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, nil))
}

// Build assembles the full service from config. Configuration errors are
// fatal here; nothing runs with a half-configured cache.
func Build(cfg *config.AppConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = NewLogger(nil)
	}

	emb, embModel, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	ch, err := buildChunker(cfg)
	if err != nil {
		return nil, err
	}
	st, err := buildVectorStore(cfg)
	if err != nil {
		return nil, err
	}
	sum, err := buildSummarizer(cfg)
	if err != nil {
		return nil, err
	}
	gen, err := buildGenerator(cfg)
	if err != nil {
		return nil, err
	}

	var store cacheCloser
	var answers *cache.QueryCache
	if cfg.Cache.Enabled {
		store, err = buildCacheStore(cfg, logger)
		if err != nil {
			return nil, err
		}
		answers = cache.NewQueryCache(
			store,
			cache.NewKeyDeriver(cfg.Cache.KeyPrefix),
			time.Duration(cfg.Cache.DefaultTTLSecs)*time.Second,
			logger.With("component", "query-cache"),
		)
	}

	svc := service.New(ch, emb, st, sum, gen, answers, service.Config{
		TopK:                cfg.Retrieval.TopK,
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		SummaryMaxSentences: cfg.Summarizer.MaxSentences,
		EmbeddingModel:      embModel,
	}, logger.With("component", "qa-service"))

	return &App{Service: svc, Cache: store, Logger: logger}, nil
}

// Close releases held resources.
func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn("failed to close cache", "error", err)
		}
	}
}

func buildEmbedder(cfg *config.AppConfig) (domain.Embedder, string, error) {
	switch cfg.Embedder.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), "tfidf", nil
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return nil, "", fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, "", fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, cfg.Embedder.OpenAI.Model, nil
	default:
		return nil, "", fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

func buildChunker(cfg *config.AppConfig) (domain.Chunker, error) {
	switch cfg.Chunker.Type {
	case "sentence", "":
		return chunker.NewSentenceChunker(cfg.Chunker.SentencesPerChunk, cfg.Chunker.OverlapSentences), nil
	case "character":
		return chunker.NewCharacterChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Chunker.Type)
	}
}

func buildVectorStore(cfg *config.AppConfig) (domain.VectorStore, error) {
	switch cfg.VectorStore.Type {
	case "memory", "":
		return memory.NewStorage(), nil
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.VectorStore.Qdrant.URL,
			APIKey:     cfg.VectorStore.Qdrant.APIKey,
			Collection: cfg.VectorStore.Qdrant.Collection,
			Timeout:    time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
}

func buildSummarizer(cfg *config.AppConfig) (domain.Summarizer, error) {
	switch cfg.Summarizer.Type {
	case "frequency", "":
		return summarizer.NewFrequencySummarizer(), nil
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
	}
}

func buildGenerator(cfg *config.AppConfig) (domain.Generator, error) {
	switch cfg.Generator.Type {
	case "openai", "":
		gen, err := generator.NewOpenAI(generator.Config{
			BaseURL:     cfg.Generator.BaseURL,
			APIKeyEnv:   cfg.Generator.APIKeyEnv,
			Model:       cfg.Generator.Model,
			Temperature: cfg.Generator.Temperature,
			MaxTokens:   cfg.Generator.MaxTokens,
			Timeout:     time.Duration(cfg.Generator.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("generator init failed: %w", err)
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Generator.Type)
	}
}

func buildCacheStore(cfg *config.AppConfig, logger *slog.Logger) (cacheCloser, error) {
	opTimeout := time.Duration(cfg.Cache.OpTimeoutMillis) * time.Millisecond
	local := filecache.New(cfg.Cache.Dir, logger.With("component", "file-cache"))

	switch cfg.Cache.Type {
	case "file":
		return cache.NewSingle(local, opTimeout, logger.With("component", "cache")), nil
	case "redis", "":
		rc := cfg.Cache.Redis
		remote := rediscache.New(rediscache.Config{
			Addr:         fmt.Sprintf("%s:%d", rc.Host, rc.Port),
			Password:     os.Getenv(rc.PasswordEnv),
			DB:           rc.DB,
			DialTimeout:  time.Duration(rc.DialTimeoutSecs) * time.Second,
			ReadTimeout:  time.Duration(rc.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(rc.WriteTimeoutSecs) * time.Second,
		})
		return cache.NewResilient(remote, local, cache.ResilientConfig{
			OpTimeout:     opTimeout,
			ProbeInterval: time.Duration(cfg.Cache.ProbeIntervalSecs) * time.Second,
		}, logger.With("component", "resilient-cache")), nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Cache.Type)
	}
}
