package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/contractrag/internal/cache"
	"github.com/ppiankov/contractrag/internal/model"
)

// NewClient creates an embedding client from configuration
func NewClient(ctx context.Context, cfg model.EmbeddingConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "hashing", "local":
		return NewHashingClient(cfg.Dimension), nil
	case "openai":
		return NewOpenAIClient(cfg)
	case "ollama":
		return NewOllamaClient(cfg)
	case "gemini", "google":
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (supported: hashing, openai, ollama, gemini)", cfg.Provider)
	}
}

// New builds an Embedder with batching, rate limiting and optional caching
func New(ctx context.Context, cfg model.EmbeddingConfig, c cache.Cache, cacheTTL time.Duration) (*Embedder, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithBatchSize(cfg.BatchSize),
		WithRateLimit(cfg.RequestsPerSecond, 1),
	}
	if c != nil {
		opts = append(opts, WithCache(c, cacheTTL))
	}
	return NewEmbedder(client, opts...), nil
}

// Close releases client resources when the client holds any
func (e *Embedder) Close() error {
	if closer, ok := e.client.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
