package embedding

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/contractrag/internal/model"
	"github.com/sashabaranov/go-openai"
)

// OpenAIClient embeds text through the OpenAI embeddings API
type OpenAIClient struct {
	client *openai.Client
	model  string
	dim    int
}

// NewOpenAIClient creates an OpenAI embedding client.
// BaseURL may point at any OpenAI-compatible endpoint.
func NewOpenAIClient(cfg model.EmbeddingConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required for embeddings")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	name := cfg.Model
	if name == "" {
		name = string(openai.SmallEmbedding3)
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = 1536
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  name,
		dim:    dim,
	}, nil
}

// Name returns the client name
func (c *OpenAIClient) Name() string { return "openai" }

// Model returns the embedding model
func (c *OpenAIClient) Model() string { return c.model }

// Dimensions returns the requested vector length
func (c *OpenAIClient) Dimensions() int { return c.dim }

// EmbedBatch sends one embeddings request for all texts
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	}
	// Only the v3 models accept a reduced output dimension
	if strings.HasPrefix(c.model, "text-embedding-3") {
		req.Dimensions = c.dim
	}

	resp, err := c.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("OpenAI embeddings error: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("OpenAI returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	// The API reports an index per item; do not rely on response order
	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, item := range data {
		out[i] = item.Embedding
	}
	return out, nil
}
