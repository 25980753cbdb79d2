package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/contractrag/internal/model"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaClient embeds text with a local Ollama server
type OllamaClient struct {
	baseURL    string
	model      string
	dim        int
	httpClient *http.Client
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// NewOllamaClient creates an Ollama embedding client
func NewOllamaClient(cfg model.EmbeddingConfig) (*OllamaClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama embedding model is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("ollama embedding dimension is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      cfg.Model,
		dim:        cfg.Dimension,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the client name
func (c *OllamaClient) Name() string { return "ollama" }

// Model returns the embedding model
func (c *OllamaClient) Model() string { return c.model }

// Dimensions returns the configured vector length
func (c *OllamaClient) Dimensions() int { return c.dim }

// EmbedBatch calls /api/embed with all texts
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embed error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed ollamaEmbedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("ollama embed error: %s", parsed.Error)
	}
	return parsed.Embeddings, nil
}
