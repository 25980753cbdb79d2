package index

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/contractrag/internal/model"
)

// New creates an index backend from configuration
func New(cfg model.IndexConfig) (Index, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemoryIndex(), nil
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = ":memory:"
		}
		return OpenSQLite(path)
	case "qdrant":
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("QDRANT_API_KEY")
		}
		return NewQdrantIndex(QdrantConfig{
			URL:     cfg.URL,
			APIKey:  apiKey,
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unsupported index backend: %s (supported: memory, sqlite, qdrant)", cfg.Backend)
	}
}
