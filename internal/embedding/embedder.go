package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/contractrag/internal/cache"
	"golang.org/x/time/rate"
)

const (
	defaultBatchSize  = 64
	defaultMaxRetries = 2
)

// embedSleepFunc is the sleep used between retries (injectable for tests)
var embedSleepFunc = time.Sleep

// Client is the interface for embedding model clients.
// Vectors need not be normalized; the Embedder does that.
type Client interface {
	Name() string
	Model() string
	Dimensions() int
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder turns text into unit-length vectors of a fixed dimension.
// Inputs are sent in batches of at most batchSize; results keep input order.
type Embedder struct {
	client     Client
	batchSize  int
	maxRetries int
	cache      cache.Cache
	cacheTTL   time.Duration
	limiter    *rate.Limiter
}

// Option configures an Embedder
type Option func(*Embedder)

// WithBatchSize bounds how many texts are sent per client call
func WithBatchSize(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithCache stores normalized vectors keyed by client, model, dimension and text
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(e *Embedder) {
		e.cache = c
		e.cacheTTL = ttl
	}
}

// WithRateLimit throttles client calls; rps <= 0 disables throttling
func WithRateLimit(rps float64, burst int) Option {
	return func(e *Embedder) {
		if rps <= 0 {
			e.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxRetries sets how many times a failed batch is retried
func WithMaxRetries(n int) Option {
	return func(e *Embedder) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// NewEmbedder wraps a client
func NewEmbedder(client Client, opts ...Option) *Embedder {
	e := &Embedder{
		client:     client,
		batchSize:  defaultBatchSize,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dimension returns the vector length produced by the embedder
func (e *Embedder) Dimension() int {
	return e.client.Dimensions()
}

// Name identifies the underlying client and model
func (e *Embedder) Name() string {
	return e.client.Name() + "/" + e.client.Model()
}

// EmbedOne embeds a single query. It shares the batch path, so
// EmbedOne(t) equals Embed([t])[0].
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Embed embeds texts in order. Input strings are never modified.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("cannot embed empty text at index %d", i)
		}
	}

	results := make([][]float32, len(texts))

	// Serve what we can from cache, remember the rest by original index
	missing := make([]int, 0, len(texts))
	for i, text := range texts {
		if vec, ok := e.cached(text); ok {
			results[i] = vec
			continue
		}
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += e.batchSize {
		end := start + e.batchSize
		if end > len(missing) {
			end = len(missing)
		}

		batch := make([]string, 0, end-start)
		for _, idx := range missing[start:end] {
			batch = append(batch, texts[idx])
		}

		vecs, err := e.embedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}

		for j, idx := range missing[start:end] {
			results[idx] = vecs[j]
			e.store(texts[idx], vecs[j])
		}
	}

	return results, nil
}

func (e *Embedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			embedSleepFunc(retryDelay(attempt - 1))
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		raw, err := e.client.EmbedBatch(ctx, batch)
		if err != nil {
			lastErr = err
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			continue
		}

		vecs, err := e.normalizeAll(raw, len(batch))
		if err != nil {
			return nil, err
		}
		return vecs, nil
	}
	return nil, fmt.Errorf("%s failed after %d attempts: %w", e.client.Name(), e.maxRetries+1, lastErr)
}

func (e *Embedder) normalizeAll(raw [][]float32, want int) ([][]float32, error) {
	if len(raw) != want {
		return nil, fmt.Errorf("expected %d embeddings, got %d", want, len(raw))
	}
	dim := e.client.Dimensions()
	out := make([][]float32, len(raw))
	for i, vec := range raw {
		if len(vec) != dim {
			return nil, fmt.Errorf("embedding %d: expected dimension %d, got %d", i, dim, len(vec))
		}
		norm, err := Normalize(vec)
		if err != nil {
			return nil, fmt.Errorf("embedding %d: %w", i, err)
		}
		out[i] = norm
	}
	return out, nil
}

func (e *Embedder) cacheKey(text string) string {
	return cache.Key(e.client.Name(), e.client.Model(), strconv.Itoa(e.client.Dimensions()), text)
}

func (e *Embedder) cached(text string) ([]float32, bool) {
	if e.cache == nil {
		return nil, false
	}
	data, ok := e.cache.Get(e.cacheKey(text))
	if !ok {
		return nil, false
	}
	vec, err := cache.DecodeVector(data)
	if err != nil || len(vec) != e.client.Dimensions() {
		return nil, false
	}
	return vec, true
}

func (e *Embedder) store(text string, vec []float32) {
	if e.cache == nil {
		return
	}
	_ = e.cache.Set(e.cacheKey(text), cache.EncodeVector(vec), e.cacheTTL)
}

// Normalize returns a unit-length copy of vec
func Normalize(vec []float32) ([]float32, error) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, errors.New("cannot normalize zero or non-finite vector")
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out, nil
}

// Dot computes the dot product; for unit vectors it equals cosine similarity
func Dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
