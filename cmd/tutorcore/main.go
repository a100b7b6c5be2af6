// Command tutorcore is the entry point for the curriculum tutoring service.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	cachedembed "github.com/brightpath-labs/tutorcore/internal/adapters/driven/embedding/cached"
	ollamaembed "github.com/brightpath-labs/tutorcore/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/brightpath-labs/tutorcore/internal/adapters/driven/embedding/openai"
	ollamallm "github.com/brightpath-labs/tutorcore/internal/adapters/driven/llm/ollama"
	openaillm "github.com/brightpath-labs/tutorcore/internal/adapters/driven/llm/openai"
	storagememory "github.com/brightpath-labs/tutorcore/internal/adapters/driven/storage/memory"
	"github.com/brightpath-labs/tutorcore/internal/adapters/driven/storage/sqlite"
	indexmemory "github.com/brightpath-labs/tutorcore/internal/adapters/driven/vectorindex/memory"
	"github.com/brightpath-labs/tutorcore/internal/adapters/driven/vectorindex/pgvector"
	"github.com/brightpath-labs/tutorcore/internal/adapters/driving/cli"
	"github.com/brightpath-labs/tutorcore/internal/config"
	"github.com/brightpath-labs/tutorcore/internal/core/domain"
	"github.com/brightpath-labs/tutorcore/internal/core/ports/driven"
	"github.com/brightpath-labs/tutorcore/internal/core/services"
	"github.com/brightpath-labs/tutorcore/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Optional .env for API keys; absence is fine.
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	defer embedder.Close()

	llm, err := buildLLM(cfg)
	if err != nil {
		return err
	}
	defer llm.Close()

	index, err := buildIndex(cfg, embedder.Dimensions())
	if err != nil {
		return err
	}
	defer index.Close()

	versions, closeStore, err := buildVersionStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	segmenter := services.NewSegmenter(cfg.Ingestion.MaxUnitLength)
	coordinator := services.NewIngestionCoordinator(segmenter, embedder, index, versions,
		services.IngestionConfig{
			BatchSize:     cfg.Ingestion.EmbedBatchSize,
			Concurrency:   cfg.Ingestion.EmbedConcurrency,
			RatePerSecond: cfg.Ingestion.EmbedRatePerSecond,
		})

	retriever := services.NewRetriever(index, services.RetrieverConfig{
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		ChapterMargin:       cfg.Retrieval.ChapterMargin,
		OverFetchFactor:     cfg.Retrieval.OverFetchFactor,
	})
	conversations := services.NewConversationState(services.ConversationConfig{
		MaxTurns: cfg.Conversation.MaxTurns,
		MaxChars: cfg.Conversation.MaxChars,
	})
	answerer := services.NewGroundedAnswerer(llm, services.AnswererConfig{
		MaxAttempts: cfg.LLM.MaxAttempts,
	})
	tutor := services.NewTutorService(embedder, retriever, answerer, conversations, cfg.Retrieval.TopK)

	cli.SetServices(coordinator, tutor)
	cli.SetBackendCheck(func(ctx context.Context) error {
		if err := embedder.Ping(ctx); err != nil {
			return fmt.Errorf("embedding backend: %w", err)
		}
		if err := llm.Ping(ctx); err != nil {
			return fmt.Errorf("generation backend: %w", err)
		}
		return nil
	})
	return cli.Execute()
}

// loadConfig reads configuration from TUTORCORE_CONFIG or the default path.
func loadConfig() (*config.Config, error) {
	path := os.Getenv("TUTORCORE_CONFIG")
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return config.Load(path)
}

func buildEmbedder(cfg *config.Config) (driven.EmbeddingService, error) {
	var backend driven.EmbeddingService

	switch domain.AIProvider(cfg.Embedding.Provider) {
	case domain.AIProviderOllama:
		backend = ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    cfg.Embedding.Timeout,
		})
	case domain.AIProviderOpenAI:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     os.Getenv(cfg.Embedding.APIKeyEnv),
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    cfg.Embedding.Timeout,
		})
		if err != nil {
			return nil, err
		}
		backend = svc
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}

	return cachedembed.New(backend, cachedembed.WithTTL(cfg.Embedding.CacheTTL)), nil
}

func buildLLM(cfg *config.Config) (driven.LLMService, error) {
	switch domain.AIProvider(cfg.LLM.Provider) {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.Config{
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		}), nil
	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.Config{
			APIKey:  os.Getenv(cfg.LLM.APIKeyEnv),
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLM.Provider)
	}
}

func buildIndex(cfg *config.Config, dimensions int) (driven.VectorIndex, error) {
	switch cfg.Index.Backend {
	case "pgvector":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return pgvector.NewVectorIndex(ctx, pgvector.Config{
			DSN:        cfg.Index.PostgresURL,
			Dimensions: dimensions,
		})
	case "memory":
		logger.Warn("Using in-memory vector index; ingested content is not persisted")
		return indexmemory.NewVectorIndex(dimensions), nil
	default:
		return nil, fmt.Errorf("unknown index backend: %s", cfg.Index.Backend)
	}
}

func buildVersionStore(cfg *config.Config) (driven.VersionStore, func(), error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		store, err := sqlite.NewStore(cfg.Storage.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening version store: %w", err)
		}
		return store.VersionStore(), func() { store.Close() }, nil
	case "memory":
		return storagememory.NewVersionStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}
