package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/ppiankov/contractrag/internal/model"
)

type memoryEntry struct {
	id     string
	text   string
	page   int
	vector []float32
}

type memoryCollection struct {
	dim     int
	entries []memoryEntry
}

// MemoryIndex keeps collections in process memory and searches by brute force
type MemoryIndex struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

// NewMemoryIndex creates an empty in-memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{collections: make(map[string]*memoryCollection)}
}

// Reset replaces the collection with an empty one of the given dimension
func (m *MemoryIndex) Reset(_ context.Context, collection string, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid dimension %d", dim)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[collection] = &memoryCollection{dim: dim}
	return nil
}

// Insert appends chunks to the collection
func (m *MemoryIndex) Insert(_ context.Context, collection string, chunks ...model.Chunk) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("insert into %q: %w", collection, model.ErrCollectionNotFound)
	}
	if err := checkChunks(chunks, col.dim); err != nil {
		return nil, err
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = uuid.NewString()
		col.entries = append(col.entries, memoryEntry{
			id:     ids[i],
			text:   c.Text,
			page:   c.PageNumber,
			vector: append([]float32(nil), c.Embedding...),
		})
	}
	return ids, nil
}

// Search scores every entry against the query vector
func (m *MemoryIndex) Search(_ context.Context, collection string, vector []float32, k int) ([]model.ScoredChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	col, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("search %q: %w", collection, model.ErrCollectionNotFound)
	}
	if err := checkQuery(vector, col.dim); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	results := make([]model.ScoredChunk, 0, len(col.entries))
	for _, e := range col.entries {
		results = append(results, model.ScoredChunk{
			ID:         e.id,
			Text:       e.text,
			PageNumber: e.page,
			Score:      dot(vector, e.vector),
		})
	}
	return rankTopK(results, k), nil
}

// Drop forgets the collection
func (m *MemoryIndex) Drop(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, collection)
	return nil
}

// Exists reports whether the collection is present
func (m *MemoryIndex) Exists(_ context.Context, collection string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[collection]
	return ok, nil
}

// Len returns the number of chunks in a collection
func (m *MemoryIndex) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if col, ok := m.collections[collection]; ok {
		return len(col.entries)
	}
	return 0
}

// Close releases all collections
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections = make(map[string]*memoryCollection)
	return nil
}
