// Package document loads contracts into cleaned, numbered pages
package document

import (
	"context"
	"fmt"

	"github.com/ppiankov/contractrag/internal/model"
)

// Document is a loaded contract
type Document struct {
	Location string       // Path or URI it was read from
	Name     string       // Base file name
	Loader   string       // Loader that parsed it
	Pages    []model.Page // Cleaned, non-empty pages in page order
}

// Reader fetches and parses documents
type Reader struct {
	fetcher  *Fetcher
	registry *Registry
}

// NewReader creates a reader with the built-in loaders
func NewReader(cfg model.InputConfig) *Reader {
	return &Reader{
		fetcher:  NewFetcher(cfg),
		registry: NewRegistry(),
	}
}

// NewReaderWith combines a custom fetcher and registry
func NewReaderWith(fetcher *Fetcher, registry *Registry) *Reader {
	return &Reader{fetcher: fetcher, registry: registry}
}

// Read loads the document at location
func (r *Reader) Read(ctx context.Context, location string) (*Document, error) {
	src, err := r.fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", location, err)
	}
	return r.Parse(src)
}

// Parse turns fetched content into a document
func (r *Reader) Parse(src *Source) (*Document, error) {
	loader, err := r.registry.Find(src.Name, src.ContentType)
	if err != nil {
		return nil, err
	}
	raw, err := loader.Load(src.Data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", src.Location, err)
	}

	doc := &Document{Location: src.Location, Name: src.Name, Loader: loader.Name()}
	for _, p := range raw {
		text := Clean(p.Text)
		if text == "" {
			continue
		}
		doc.Pages = append(doc.Pages, model.Page{PageNumber: p.PageNumber, Text: text})
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("load %s: no extractable text", src.Location)
	}
	return doc, nil
}

// Load reads a document with default input settings
func Load(ctx context.Context, location string) (*Document, error) {
	return NewReader(model.DefaultConfig().Input).Read(ctx, location)
}
