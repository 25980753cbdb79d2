package document

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ppiankov/contractrag/internal/model"
)

// Loader turns raw document bytes into numbered pages
type Loader interface {
	// Name returns the loader name
	Name() string

	// CanHandle checks whether this loader reads the given file
	CanHandle(name string, contentType string) bool

	// Load splits the document into pages. Text is returned uncleaned.
	Load(data []byte) ([]model.Page, error)
}

// Registry picks a loader per document
type Registry struct {
	loaders []Loader
}

// NewRegistry creates a registry with the built-in loaders
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(PDFLoader{})
	r.Register(HTMLLoader{})
	r.Register(JSONLoader{})
	r.Register(TextLoader{})
	return r
}

// Register adds a loader; earlier registrations win
func (r *Registry) Register(l Loader) {
	r.loaders = append(r.loaders, l)
}

// Find returns the first loader that handles the document
func (r *Registry) Find(name, contentType string) (Loader, error) {
	for _, l := range r.loaders {
		if l.CanHandle(name, contentType) {
			return l, nil
		}
	}
	return nil, fmt.Errorf("unsupported document %q (%s)", name, contentType)
}

func hasExt(name string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}
