package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/ppiankov/contractrag/internal/model"
	"google.golang.org/api/option"
)

// GeminiClient embeds text with Google Generative AI embedding models
type GeminiClient struct {
	client *genai.Client
	em     *genai.EmbeddingModel
	model  string
	dim    int
}

// NewGeminiClient creates a Gemini embedding client. Close releases it.
func NewGeminiClient(ctx context.Context, cfg model.EmbeddingConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing Gemini API key for embeddings")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	name := cfg.Model
	if name == "" {
		name = "text-embedding-004"
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = 768
	}

	return &GeminiClient{
		client: client,
		em:     client.EmbeddingModel(name),
		model:  name,
		dim:    dim,
	}, nil
}

// Name returns the client name
func (c *GeminiClient) Name() string { return "gemini" }

// Model returns the embedding model
func (c *GeminiClient) Model() string { return c.model }

// Dimensions returns the configured vector length
func (c *GeminiClient) Dimensions() int { return c.dim }

// EmbedBatch embeds all texts with one BatchEmbedContents call
func (c *GeminiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	batch := c.em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	resp, err := c.em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings error: %w", err)
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("gemini returned no embedding for input %d", i)
		}
		out = append(out, e.Values)
	}
	return out, nil
}

// Close releases the underlying client
func (c *GeminiClient) Close() error {
	return c.client.Close()
}
