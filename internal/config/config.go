package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	Distance    string `yaml:"distance"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// GeneratorConfig configures the answer-generation model.
type GeneratorConfig struct {
	Type        string  `yaml:"type"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// RetrievalConfig holds the retrieval parameters that shape every answer.
// These feed into the cache key: changing any of them changes the key.
type RetrievalConfig struct {
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// RedisConfig contains connection details for the remote cache backend.
type RedisConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	PasswordEnv      string `yaml:"password_env"`
	DB               int    `yaml:"db"`
	DialTimeoutSecs  int    `yaml:"dial_timeout_secs"`
	ReadTimeoutSecs  int    `yaml:"read_timeout_secs"`
	WriteTimeoutSecs int    `yaml:"write_timeout_secs"`
}

// CacheConfig configures the answer cache and its backends.
type CacheConfig struct {
	Enabled           bool         `yaml:"enabled"`
	Type              string       `yaml:"type"` // "redis" (with file fallback) or "file"
	KeyPrefix         string       `yaml:"key_prefix"`
	DefaultTTLSecs    int          `yaml:"default_ttl_secs"`
	Dir               string       `yaml:"dir"`
	OpTimeoutMillis   int          `yaml:"op_timeout_ms"`
	ProbeIntervalSecs int          `yaml:"probe_interval_secs"`
	Redis             *RedisConfig `yaml:"redis,omitempty"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Cache       CacheConfig       `yaml:"cache"`
	Server      ServerConfig      `yaml:"server"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects configurations the system must not silently run with.
// A misconfigured cache is fatal at startup rather than degraded at runtime.
func (c *AppConfig) Validate() error {
	switch c.Chunker.Type {
	case "", "sentence", "character":
	default:
		return fmt.Errorf("unknown chunker type: %q", c.Chunker.Type)
	}
	if c.Chunker.OverlapSentences >= c.Chunker.SentencesPerChunk {
		return fmt.Errorf("chunker overlap_sentences must be less than sentences_per_chunk, got %d >= %d",
			c.Chunker.OverlapSentences, c.Chunker.SentencesPerChunk)
	}
	// The character chunker may back a window boundary up by a quarter of its
	// size to break at whitespace, so the overlap must stay below that.
	if c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize*3/4 {
		return fmt.Errorf("chunker chunk_overlap must be less than three quarters of chunk_size, got %d >= %d",
			c.Chunker.ChunkOverlap, c.Chunker.ChunkSize*3/4)
	}
	switch c.Embedder.Type {
	case "", "tfidf", "openai":
	default:
		return fmt.Errorf("unknown embedder type: %q", c.Embedder.Type)
	}
	switch c.VectorStore.Type {
	case "", "memory", "qdrant":
	default:
		return fmt.Errorf("unknown vector store type: %q", c.VectorStore.Type)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		return fmt.Errorf("retrieval similarity_threshold must be in [0,1], got %g", c.Retrieval.SimilarityThreshold)
	}
	if c.Cache.Enabled {
		switch c.Cache.Type {
		case "redis", "file":
		default:
			return fmt.Errorf("unknown cache type: %q (expected \"redis\" or \"file\")", c.Cache.Type)
		}
		if c.Cache.DefaultTTLSecs <= 0 {
			return fmt.Errorf("cache default_ttl_secs must be positive, got %d", c.Cache.DefaultTTLSecs)
		}
		if c.Cache.Type == "redis" && c.Cache.Redis == nil {
			return errors.New("cache type is redis but no redis connection is configured")
		}
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragqa", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "tfidf"},
		Chunker:     ChunkerConfig{Type: "sentence", SentencesPerChunk: 5, OverlapSentences: 1, ChunkSize: 1000, ChunkOverlap: 200},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Summarizer:  SummarizerConfig{Type: "frequency", MaxSentences: 5},
		Generator: GeneratorConfig{
			Type:        "openai",
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			MaxTokens:   512,
			TimeoutSecs: 60,
		},
		Retrieval: RetrievalConfig{TopK: 3, SimilarityThreshold: 0.7},
		Cache: CacheConfig{
			Enabled:           true,
			Type:              "redis",
			KeyPrefix:         "rag:answer:",
			DefaultTTLSecs:    3600,
			Dir:               "cache/rag",
			OpTimeoutMillis:   300,
			ProbeIntervalSecs: 30,
			Redis:             &RedisConfig{Host: "localhost", Port: 6379, PasswordEnv: "REDIS_PASSWORD", DB: 0},
		},
		Server: ServerConfig{Addr: ":8080"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.ChunkOverlap == 0 {
		cfg.Chunker.ChunkOverlap = 200
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
	}
	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "openai"
	}
	if cfg.Generator.BaseURL == "" {
		cfg.Generator.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Generator.APIKeyEnv == "" {
		cfg.Generator.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = "gpt-4o-mini"
	}
	if cfg.Generator.TimeoutSecs == 0 {
		cfg.Generator.TimeoutSecs = 60
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.SimilarityThreshold == 0 {
		cfg.Retrieval.SimilarityThreshold = 0.7
	}
	if cfg.Cache.Type == "" {
		cfg.Cache.Type = "redis"
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "rag:answer:"
	}
	if cfg.Cache.DefaultTTLSecs == 0 {
		cfg.Cache.DefaultTTLSecs = 3600
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = "cache/rag"
	}
	if cfg.Cache.OpTimeoutMillis == 0 {
		cfg.Cache.OpTimeoutMillis = 300
	}
	if cfg.Cache.ProbeIntervalSecs == 0 {
		cfg.Cache.ProbeIntervalSecs = 30
	}
	if cfg.Cache.Type == "redis" && cfg.Cache.Redis != nil {
		if cfg.Cache.Redis.Host == "" {
			cfg.Cache.Redis.Host = "localhost"
		}
		if cfg.Cache.Redis.Port == 0 {
			cfg.Cache.Redis.Port = 6379
		}
		if cfg.Cache.Redis.PasswordEnv == "" {
			cfg.Cache.Redis.PasswordEnv = "REDIS_PASSWORD"
		}
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}
