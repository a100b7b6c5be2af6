// Package config loads tutorcore configuration from a TOML file.
// Retrieval and ingestion tuning (similarity threshold, chapter margin,
// batch sizes) is configuration, not a constant.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/brightpath-labs/tutorcore/internal/core/domain"
)

// Default configuration values.
const (
	DefaultSimilarityThreshold = 0.35
	DefaultChapterMargin       = 0.15
	DefaultTopK                = 6
	DefaultOverFetchFactor     = 3
	DefaultEmbedBatchSize      = 32
	DefaultEmbedConcurrency    = 4
	DefaultEmbedRatePerSecond  = 10
	DefaultMaxUnitLength       = 1200
	DefaultMaxTurns            = 12
	DefaultMaxTurnChars        = 8000
	DefaultCacheTTL            = 10 * time.Minute
	DefaultMaxAttempts         = 3
	DefaultCallTimeout         = 30 * time.Second
)

// Config is the root configuration.
type Config struct {
	// Retrieval configures ranking and thresholds on the query path.
	Retrieval RetrievalConfig `toml:"retrieval"`

	// Ingestion configures segmentation and batch embedding.
	Ingestion IngestionConfig `toml:"ingestion"`

	// Conversation configures per-session turn bounds.
	Conversation ConversationConfig `toml:"conversation"`

	// Embedding selects and configures the embedding backend.
	Embedding EmbeddingConfig `toml:"embedding"`

	// LLM selects and configures the generation backend.
	LLM LLMConfig `toml:"llm"`

	// Index selects the vector index backend ("memory" or "pgvector").
	Index IndexConfig `toml:"index"`

	// Storage configures the document version store.
	Storage StorageConfig `toml:"storage"`
}

// RetrievalConfig holds ranking parameters.
type RetrievalConfig struct {
	// SimilarityThreshold is τ: candidates scoring below it never reach
	// the generator.
	SimilarityThreshold float64 `toml:"similarity_threshold"`

	// ChapterMargin is the bounded boost added to segments from the
	// student's active chapter during re-ranking.
	ChapterMargin float64 `toml:"chapter_margin"`

	// TopK is the size of the returned context window.
	TopK int `toml:"top_k"`

	// OverFetchFactor controls how many candidates are requested from the
	// index (TopK * OverFetchFactor) to allow re-ranking without a second
	// round trip.
	OverFetchFactor int `toml:"over_fetch_factor"`
}

// IngestionConfig holds segmentation and embedding batch parameters.
type IngestionConfig struct {
	// MaxUnitLength bounds a unit's character length so it stays within
	// the embedder's input limit.
	MaxUnitLength int `toml:"max_unit_length"`

	// EmbedBatchSize is the number of units embedded per batch call.
	EmbedBatchSize int `toml:"embed_batch_size"`

	// EmbedConcurrency caps parallel batch embedding calls.
	EmbedConcurrency int `toml:"embed_concurrency"`

	// EmbedRatePerSecond limits embedding calls to respect external API
	// rate limits.
	EmbedRatePerSecond int `toml:"embed_rate_per_second"`
}

// ConversationConfig bounds the per-session context window.
type ConversationConfig struct {
	// MaxTurns is the maximum number of turns kept per session.
	MaxTurns int `toml:"max_turns"`

	// MaxChars is the character budget across kept turns.
	MaxChars int `toml:"max_chars"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	// Provider is "ollama" or "openai".
	Provider string `toml:"provider"`

	// BaseURL overrides the provider's default API base URL.
	BaseURL string `toml:"base_url"`

	// Model is the embedding model name.
	Model string `toml:"model"`

	// Dimensions overrides the model's default vector size.
	Dimensions int `toml:"dimensions"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `toml:"api_key_env"`

	// CacheTTL bounds how long question embeddings are cached.
	CacheTTL time.Duration `toml:"cache_ttl"`

	// Timeout is the per-call timeout.
	Timeout time.Duration `toml:"timeout"`
}

// LLMConfig selects the generation backend.
type LLMConfig struct {
	// Provider is "ollama" or "openai".
	Provider string `toml:"provider"`

	// BaseURL overrides the provider's default API base URL.
	BaseURL string `toml:"base_url"`

	// Model is the generation model name.
	Model string `toml:"model"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `toml:"api_key_env"`

	// Timeout is the per-call timeout.
	Timeout time.Duration `toml:"timeout"`

	// MaxAttempts caps retries for timeouts and rate limits.
	MaxAttempts int `toml:"max_attempts"`
}

// IndexConfig selects the vector index backend.
type IndexConfig struct {
	// Backend is "memory" or "pgvector".
	Backend string `toml:"backend"`

	// PostgresURL is the connection string for the pgvector backend.
	PostgresURL string `toml:"postgres_url"`
}

// StorageConfig configures the document version store.
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `toml:"backend"`

	// DataDir is the directory for the SQLite database.
	// Defaults to ~/.tutorcore/data.
	DataDir string `toml:"data_dir"`
}

// Load reads configuration from path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := &Config{}
			applyDefaults(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultPath returns ~/.tutorcore/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".tutorcore", "config.toml"), nil
}

// Validate checks provider and backend selections.
func (c *Config) Validate() error {
	if !domain.AIProvider(c.Embedding.Provider).IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidInput, c.Embedding.Provider)
	}
	if !domain.AIProvider(c.LLM.Provider).IsValid() {
		return fmt.Errorf("%w: unknown llm provider %q", domain.ErrInvalidInput, c.LLM.Provider)
	}
	switch c.Index.Backend {
	case "memory", "pgvector":
	default:
		return fmt.Errorf("%w: unknown index backend %q", domain.ErrInvalidInput, c.Index.Backend)
	}
	switch c.Storage.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("%w: unknown storage backend %q", domain.ErrInvalidInput, c.Storage.Backend)
	}
	if c.Retrieval.ChapterMargin < 0 {
		return fmt.Errorf("%w: chapter margin must be non-negative", domain.ErrInvalidInput)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Retrieval.SimilarityThreshold == 0 {
		cfg.Retrieval.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.Retrieval.ChapterMargin == 0 {
		cfg.Retrieval.ChapterMargin = DefaultChapterMargin
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}
	if cfg.Retrieval.OverFetchFactor == 0 {
		cfg.Retrieval.OverFetchFactor = DefaultOverFetchFactor
	}
	if cfg.Ingestion.MaxUnitLength == 0 {
		cfg.Ingestion.MaxUnitLength = DefaultMaxUnitLength
	}
	if cfg.Ingestion.EmbedBatchSize == 0 {
		cfg.Ingestion.EmbedBatchSize = DefaultEmbedBatchSize
	}
	if cfg.Ingestion.EmbedConcurrency == 0 {
		cfg.Ingestion.EmbedConcurrency = DefaultEmbedConcurrency
	}
	if cfg.Ingestion.EmbedRatePerSecond == 0 {
		cfg.Ingestion.EmbedRatePerSecond = DefaultEmbedRatePerSecond
	}
	if cfg.Conversation.MaxTurns == 0 {
		cfg.Conversation.MaxTurns = DefaultMaxTurns
	}
	if cfg.Conversation.MaxChars == 0 {
		cfg.Conversation.MaxChars = DefaultMaxTurnChars
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = domain.AIProviderOllama.String()
	}
	if cfg.Embedding.CacheTTL == 0 {
		cfg.Embedding.CacheTTL = DefaultCacheTTL
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = DefaultCallTimeout
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = domain.AIProviderOllama.String()
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 2 * DefaultCallTimeout
	}
	if cfg.LLM.MaxAttempts == 0 {
		cfg.LLM.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "memory"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "sqlite"
	}
}
