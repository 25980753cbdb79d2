package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/contractrag/internal/model"
)

// QdrantIndex is a minimal REST client for a Qdrant server.
// Collections use cosine distance.
type QdrantIndex struct {
	url    string
	apiKey string
	client *http.Client

	mu   sync.Mutex
	dims map[string]int
}

// QdrantConfig configures the Qdrant client
type QdrantConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// NewQdrantIndex creates a Qdrant-backed index
func NewQdrantIndex(cfg QdrantConfig) (*QdrantIndex, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantIndex{
		url:    strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
		dims:   make(map[string]int),
	}, nil
}

type qdrantStatusError struct {
	method string
	path   string
	status int
	body   string
}

func (e *qdrantStatusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: status %d: %s", e.method, e.path, e.status, e.body)
}

// Reset deletes the collection if present and creates it again
func (q *QdrantIndex) Reset(ctx context.Context, collection string, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid dimension %d", dim)
	}
	if err := q.Drop(ctx, collection); err != nil {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	if err := q.do(ctx, http.MethodPut, q.collectionPath(collection), body, nil); err != nil {
		return err
	}

	q.mu.Lock()
	q.dims[collection] = dim
	q.mu.Unlock()
	return nil
}

// Insert upserts chunks as points and waits for them to be indexed
func (q *QdrantIndex) Insert(ctx context.Context, collection string, chunks ...model.Chunk) ([]string, error) {
	dim, err := q.dimension(ctx, collection)
	if err != nil {
		return nil, err
	}
	if err := checkChunks(chunks, dim); err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	ids := make([]string, len(chunks))
	points := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		ids[i] = uuid.NewString()
		points[i] = map[string]any{
			"id":     ids[i],
			"vector": c.Embedding,
			"payload": map[string]any{
				"text":        c.Text,
				"page_number": c.PageNumber,
			},
		}
	}

	body := map[string]any{"points": points}
	if err := q.do(ctx, http.MethodPut, q.collectionPath(collection)+"/points?wait=true", body, nil); err != nil {
		return nil, q.mapNotFound(collection, err)
	}
	return ids, nil
}

// Search runs a nearest neighbour query with payloads
func (q *QdrantIndex) Search(ctx context.Context, collection string, vector []float32, k int) ([]model.ScoredChunk, error) {
	dim, err := q.dimension(ctx, collection)
	if err != nil {
		return nil, err
	}
	if err := checkQuery(vector, dim); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			ID      any     `json:"id"`
			Score   float32 `json:"score"`
			Payload struct {
				Text       string `json:"text"`
				PageNumber int    `json:"page_number"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, q.collectionPath(collection)+"/points/search", req, &resp); err != nil {
		return nil, q.mapNotFound(collection, err)
	}

	results := make([]model.ScoredChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, model.ScoredChunk{
			ID:         fmt.Sprint(r.ID),
			Text:       r.Payload.Text,
			PageNumber: r.Payload.PageNumber,
			Score:      r.Score,
		})
	}
	return rankTopK(results, k), nil
}

// Drop deletes the collection; 404 counts as success
func (q *QdrantIndex) Drop(ctx context.Context, collection string) error {
	q.mu.Lock()
	delete(q.dims, collection)
	q.mu.Unlock()

	err := q.do(ctx, http.MethodDelete, q.collectionPath(collection), nil, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

// Exists checks the collection endpoint
func (q *QdrantIndex) Exists(ctx context.Context, collection string) (bool, error) {
	err := q.do(ctx, http.MethodGet, q.collectionPath(collection), nil, nil)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// Close releases idle connections
func (q *QdrantIndex) Close() error {
	q.client.CloseIdleConnections()
	return nil
}

// dimension returns the collection's vector size, asking the server on a miss
func (q *QdrantIndex) dimension(ctx context.Context, collection string) (int, error) {
	q.mu.Lock()
	dim, ok := q.dims[collection]
	q.mu.Unlock()
	if ok {
		return dim, nil
	}

	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodGet, q.collectionPath(collection), nil, &info); err != nil {
		return 0, q.mapNotFound(collection, err)
	}
	dim = info.Result.Config.Params.Vectors.Size
	if dim <= 0 {
		return 0, fmt.Errorf("collection %q reports no vector size", collection)
	}

	q.mu.Lock()
	q.dims[collection] = dim
	q.mu.Unlock()
	return dim, nil
}

func (q *QdrantIndex) collectionPath(collection string) string {
	return "/collections/" + url.PathEscape(collection)
}

func (q *QdrantIndex) mapNotFound(collection string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("collection %q: %w", collection, model.ErrCollectionNotFound)
	}
	return err
}

func isNotFound(err error) bool {
	se, ok := err.(*qdrantStatusError)
	return ok && se.status == http.StatusNotFound
}

func (q *QdrantIndex) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.url+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &qdrantStatusError{method: method, path: path, status: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode qdrant response: %w", err)
		}
	}
	return nil
}
