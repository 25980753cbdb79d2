// Package index provides ephemeral, named vector collections with k-nearest
// neighbour search over unit-length embeddings.
package index

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/ppiankov/contractrag/internal/model"
)

// Index stores chunks with their embeddings in named collections.
// Search must be safe for concurrent callers on the same collection.
type Index interface {
	// Reset drops any collection with this name and creates an empty one
	Reset(ctx context.Context, collection string, dim int) error
	// Insert stores chunks and returns their assigned ids in input order
	Insert(ctx context.Context, collection string, chunks ...model.Chunk) ([]string, error)
	// Search returns at most k chunks ordered by descending similarity
	Search(ctx context.Context, collection string, vector []float32, k int) ([]model.ScoredChunk, error)
	// Drop removes the collection; a missing collection is not an error
	Drop(ctx context.Context, collection string) error
	// Exists reports whether the collection is present
	Exists(ctx context.Context, collection string) (bool, error)
	Close() error
}

// rankTopK sorts results by descending score and keeps the first k.
// Ties keep insertion order.
func rankTopK(results []model.ScoredChunk, k int) []model.ScoredChunk {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if k < len(results) {
		results = results[:k]
	}
	return results
}

func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}

func checkChunks(chunks []model.Chunk, dim int) error {
	for i, c := range chunks {
		if len(c.Embedding) != dim {
			return fmt.Errorf("chunk %d: %w: expected %d, got %d", i, model.ErrDimensionMismatch, dim, len(c.Embedding))
		}
	}
	return nil
}

func checkQuery(vector []float32, dim int) error {
	if len(vector) != dim {
		return fmt.Errorf("query: %w: expected %d, got %d", model.ErrDimensionMismatch, dim, len(vector))
	}
	return nil
}

// vectorToBlob encodes a vector as little-endian float32s
func vectorToBlob(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// blobToVector decodes a blob written by vectorToBlob
func blobToVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("invalid blob length: %d", len(blob))
	}
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector, nil
}
