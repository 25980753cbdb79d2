package retrieval

import (
	"context"

	"github.com/ppiankov/contractrag/internal/index"
	"github.com/ppiankov/contractrag/internal/model"
)

// QueryEmbedder embeds a single query string
type QueryEmbedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Retriever answers "top-k passages for this query" against one collection
type Retriever struct {
	embedder   QueryEmbedder
	index      index.Index
	collection string
}

// New creates a retriever bound to a collection
func New(embedder QueryEmbedder, idx index.Index, collection string) *Retriever {
	return &Retriever{
		embedder:   embedder,
		index:      idx,
		collection: collection,
	}
}

// Collection returns the collection this retriever searches
func (r *Retriever) Collection() string {
	return r.collection
}

// Retrieve embeds the query and returns up to k passages, most similar first.
// Failures are wrapped in *model.RetrievalError.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]model.Passage, error) {
	if k <= 0 {
		k = model.DefaultTopK
	}

	vec, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, &model.RetrievalError{Query: query, Err: err}
	}

	hits, err := r.index.Search(ctx, r.collection, vec, k)
	if err != nil {
		return nil, &model.RetrievalError{Query: query, Err: err}
	}

	passages := make([]model.Passage, len(hits))
	for i, h := range hits {
		passages[i] = h.Passage()
	}
	return passages, nil
}
