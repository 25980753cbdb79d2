package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/contractrag/internal/cache"
	"github.com/ppiankov/contractrag/internal/model"
)

// countingClient wraps a client and records the batches it receives
type countingClient struct {
	Client
	mu      sync.Mutex
	batches [][]string
	fail    int
}

func (c *countingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.batches = append(c.batches, append([]string(nil), texts...))
	if c.fail > 0 {
		c.fail--
		c.mu.Unlock()
		return nil, errors.New("temporary failure")
	}
	c.mu.Unlock()
	return c.Client.EmbedBatch(ctx, texts)
}

func noSleep(t *testing.T) {
	t.Helper()
	orig := embedSleepFunc
	embedSleepFunc = func(time.Duration) {}
	t.Cleanup(func() { embedSleepFunc = orig })
}

func norm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

func TestEmbedder_UnitLength(t *testing.T) {
	e := NewEmbedder(NewHashingClient(128))
	vecs, err := e.Embed(context.Background(), []string{
		"Client: Acme Corp",
		"The total contract value is $45,000.",
		"!!!",
	})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for i, v := range vecs {
		if len(v) != 128 {
			t.Errorf("vector %d: expected dimension 128, got %d", i, len(v))
		}
		if n := norm(v); math.Abs(n-1) > 1e-5 {
			t.Errorf("vector %d: expected unit norm, got %f", i, n)
		}
	}
}

func TestEmbedder_BatchInvariance(t *testing.T) {
	e := NewEmbedder(NewHashingClient(64), WithBatchSize(2))
	texts := []string{"payment terms net 30", "governing law Delaware", "effective date January 1"}

	batch, err := e.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for i, text := range texts {
		one, err := e.EmbedOne(context.Background(), text)
		if err != nil {
			t.Fatalf("EmbedOne failed: %v", err)
		}
		for j := range one {
			if one[j] != batch[i][j] {
				t.Fatalf("text %d differs at component %d: %v vs %v", i, j, one[j], batch[i][j])
			}
		}
	}
}

func TestEmbedder_SimilarTextScoresHigher(t *testing.T) {
	e := NewEmbedder(NewHashingClient(512))
	ctx := context.Background()

	query, _ := e.EmbedOne(ctx, "client name")
	related, _ := e.EmbedOne(ctx, "Client: Acme Corp, the client name for this statement of work")
	unrelated, _ := e.EmbedOne(ctx, "Insurance coverage limits apply per occurrence")

	if Dot(query, related) <= Dot(query, unrelated) {
		t.Errorf("expected related passage to score higher: %f vs %f", Dot(query, related), Dot(query, unrelated))
	}
}

func TestEmbedder_Batching(t *testing.T) {
	client := &countingClient{Client: NewHashingClient(32)}
	e := NewEmbedder(client, WithBatchSize(2))

	if _, err := e.Embed(context.Background(), []string{"a1", "b2", "c3", "d4", "e5"}); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(client.batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(client.batches))
	}
	if len(client.batches[2]) != 1 || client.batches[2][0] != "e5" {
		t.Errorf("unexpected last batch: %v", client.batches[2])
	}
}

func TestEmbedder_RejectsEmptyText(t *testing.T) {
	e := NewEmbedder(NewHashingClient(32))
	if _, err := e.Embed(context.Background(), []string{"ok", "   "}); err == nil {
		t.Error("expected error for blank input")
	}
}

func TestEmbedder_EmptyInput(t *testing.T) {
	e := NewEmbedder(NewHashingClient(32))
	vecs, err := e.Embed(context.Background(), nil)
	if err != nil || len(vecs) != 0 {
		t.Errorf("expected empty result, got %v (err=%v)", vecs, err)
	}
}

func TestEmbedder_RetriesTransientFailure(t *testing.T) {
	noSleep(t)
	client := &countingClient{Client: NewHashingClient(16), fail: 1}
	e := NewEmbedder(client)

	if _, err := e.EmbedOne(context.Background(), "retry me"); err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if len(client.batches) != 2 {
		t.Errorf("expected 2 calls, got %d", len(client.batches))
	}
}

func TestEmbedder_GivesUpAfterMaxRetries(t *testing.T) {
	noSleep(t)
	client := &countingClient{Client: NewHashingClient(16), fail: 10}
	e := NewEmbedder(client, WithMaxRetries(1))

	if _, err := e.EmbedOne(context.Background(), "never"); err == nil {
		t.Fatal("expected error")
	}
	if len(client.batches) != 2 {
		t.Errorf("expected 2 calls, got %d", len(client.batches))
	}
}

func TestEmbedder_Cache(t *testing.T) {
	client := &countingClient{Client: NewHashingClient(32)}
	e := NewEmbedder(client, WithCache(cache.NewMemoryCache(time.Hour, time.Hour), time.Hour))
	ctx := context.Background()

	first, err := e.EmbedOne(ctx, "Client: Acme Corp")
	if err != nil {
		t.Fatalf("EmbedOne failed: %v", err)
	}
	second, err := e.Embed(ctx, []string{"Client: Acme Corp", "new text"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(client.batches) != 2 {
		t.Fatalf("expected 2 client calls, got %d", len(client.batches))
	}
	if len(client.batches[1]) != 1 || client.batches[1][0] != "new text" {
		t.Errorf("expected only the uncached text to be sent, got %v", client.batches[1])
	}
	for i := range first {
		if first[i] != second[0][i] {
			t.Fatal("cached vector differs from original")
		}
	}
}

type badClient struct{ dim, got int }

func (c badClient) Name() string    { return "bad" }
func (c badClient) Model() string   { return "bad" }
func (c badClient) Dimensions() int { return c.dim }
func (c badClient) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, c.got)
	}
	return out, nil
}

func TestEmbedder_RejectsWrongDimension(t *testing.T) {
	e := NewEmbedder(badClient{dim: 8, got: 4})
	if _, err := e.EmbedOne(context.Background(), "x"); err == nil {
		t.Error("expected dimension error")
	}
}

func TestEmbedder_RejectsZeroVector(t *testing.T) {
	e := NewEmbedder(badClient{dim: 4, got: 4})
	if _, err := e.EmbedOne(context.Background(), "x"); err == nil {
		t.Error("expected error for zero vector")
	}
}

func TestOpenAIClient_EmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("Expected path /v1/embeddings, got %s", r.URL.Path)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "text-embedding-3-small" {
			t.Errorf("unexpected model: %v", req["model"])
		}
		if req["dimensions"] != float64(3) {
			t.Errorf("expected dimensions 3, got %v", req["dimensions"])
		}

		// Out of order on purpose
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0,3,4]},
			{"object":"embedding","index":0,"embedding":[1,0,0]}
		],"usage":{"prompt_tokens":4,"total_tokens":4}}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(model.EmbeddingConfig{
		APIKey:    "test-key",
		BaseURL:   server.URL + "/v1",
		Model:     "text-embedding-3-small",
		Dimension: 3,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	vecs, err := NewEmbedder(client).Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if vecs[0][0] != 1 {
		t.Errorf("expected first vector [1 0 0], got %v", vecs[0])
	}
	if math.Abs(float64(vecs[1][1])-0.6) > 1e-6 || math.Abs(float64(vecs[1][2])-0.8) > 1e-6 {
		t.Errorf("expected normalized second vector [0 0.6 0.8], got %v", vecs[1])
	}
}

func TestOpenAIClient_MissingKey(t *testing.T) {
	if _, err := NewOpenAIClient(model.EmbeddingConfig{}); err == nil {
		t.Error("expected error without API key")
	}
}

func TestOllamaClient_EmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("Expected path /api/embed, got %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Input) != 2 {
			t.Errorf("expected 2 inputs, got %d", len(req.Input))
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{
			Model:      req.Model,
			Embeddings: [][]float32{{2, 0}, {0, 5}},
		})
	}))
	defer server.Close()

	client, err := NewOllamaClient(model.EmbeddingConfig{BaseURL: server.URL, Model: "nomic-embed-text", Dimension: 2, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	vecs, err := NewEmbedder(client).Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("unexpected vectors: %v", vecs)
	}
}

func TestOllamaClient_APIError(t *testing.T) {
	noSleep(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer server.Close()

	client, _ := NewOllamaClient(model.EmbeddingConfig{BaseURL: server.URL, Model: "missing", Dimension: 2})
	if _, err := NewEmbedder(client, WithMaxRetries(0)).EmbedOne(context.Background(), "a"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(context.Background(), model.EmbeddingConfig{Provider: "hashing", Dimension: 99})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.Dimensions() != 99 {
		t.Errorf("expected dimension 99, got %d", c.Dimensions())
	}

	if _, err := NewClient(context.Background(), model.EmbeddingConfig{Provider: "word2vec"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
