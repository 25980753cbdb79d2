package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"sort"
	"strings"
)

// HashingClient is a local, deterministic embedder based on feature hashing
// of unigrams and bigrams. It needs no model download or network, and every
// text is embedded independently of the rest of its batch.
type HashingClient struct {
	dim          int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewHashingClient creates a hashing embedder with the given dimension
func NewHashingClient(dim int) *HashingClient {
	if dim <= 0 {
		dim = 512
	}
	return &HashingClient{
		dim:          dim,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Name returns the client name
func (c *HashingClient) Name() string { return "hashing" }

// Model returns the model identifier
func (c *HashingClient) Model() string { return "fnv-unigram-bigram" }

// Dimensions returns the vector length
func (c *HashingClient) Dimensions() int { return c.dim }

// EmbedBatch embeds each text independently
func (c *HashingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = c.vector(text)
	}
	return out, nil
}

func (c *HashingClient) vector(text string) []float32 {
	tokens := c.tokenize(text)
	if len(tokens) == 0 {
		if t := strings.ToLower(strings.TrimSpace(text)); t != "" {
			tokens = []string{t}
		}
	}

	counts := make(map[string]float64)
	for i, tok := range tokens {
		counts[tok]++
		if i > 0 {
			counts[tokens[i-1]+" "+tok] += 0.5
		}
	}

	// Sorted keys make float accumulation order, and so the output, deterministic
	features := make([]string, 0, len(counts))
	for f := range counts {
		features = append(features, f)
	}
	sort.Strings(features)

	acc := make([]float64, c.dim)
	for _, f := range features {
		h := fnv.New64a()
		_, _ = h.Write([]byte(f))
		sum := h.Sum64()
		idx := int(sum % uint64(c.dim))
		sign := 1.0
		if sum>>63 == 1 {
			sign = -1.0
		}
		acc[idx] += sign * (1 + math.Log(counts[f]+1))
	}

	vec := make([]float32, c.dim)
	for i, v := range acc {
		vec[i] = float32(v)
	}
	return vec
}

func (c *HashingClient) tokenize(text string) []string {
	matches := c.tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := matches[:0]
	for _, m := range matches {
		if _, stop := c.stopwords[m]; stop {
			continue
		}
		tokens = append(tokens, m)
	}
	return tokens
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
		"from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about",
		"through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very",
		"can", "will", "just", "should", "now", "what", "which", "who", "whom", "there", "do", "does",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
