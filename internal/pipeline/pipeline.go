package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/contractrag/internal/document"
	"github.com/ppiankov/contractrag/internal/model"
)

// Recorder persists finished reports
type Recorder interface {
	Save(ctx context.Context, report *model.DocumentReport) error
}

// Engine processes whole documents: load, resolve fields, report.
// Each document gets its own collection, so one engine can serve
// concurrent documents.
type Engine struct {
	reader       *document.Reader
	orchestrator *Orchestrator
	fields       []model.FieldSpec
	docType      string
	collection   string
	recorder     Recorder
	logger       *log.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithRecorder saves every successful report
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithDocumentType labels reports with the catalog in use
func WithDocumentType(docType string) EngineOption {
	return func(e *Engine) {
		e.docType = docType
	}
}

// WithEngineLogger sets the engine logger
func WithEngineLogger(l *log.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine resolving fields into collections named after base
func NewEngine(reader *document.Reader, orchestrator *Orchestrator, fields []model.FieldSpec, base string, opts ...EngineOption) *Engine {
	e := &Engine{
		reader:       reader,
		orchestrator: orchestrator,
		fields:       fields,
		collection:   base,
		logger:       log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fields returns the field specs the engine resolves
func (e *Engine) Fields() []model.FieldSpec {
	return e.fields
}

// ProcessDocument loads the document at location and resolves every field
func (e *Engine) ProcessDocument(ctx context.Context, location string) (*model.DocumentReport, error) {
	if err := model.ValidateFieldSpecs(e.fields); err != nil {
		return nil, err
	}

	doc, err := e.reader.Read(ctx, location)
	if err != nil {
		return nil, err
	}
	e.logger.Printf("loaded %s: %d pages via %s", location, len(doc.Pages), doc.Loader)

	return e.ProcessPages(ctx, location, doc.Pages)
}

// ProcessPages resolves every field against already loaded pages
func (e *Engine) ProcessPages(ctx context.Context, source string, pages []model.Page) (*model.DocumentReport, error) {
	id := uuid.New()
	collection := CollectionName(e.collection, id)

	start := time.Now()
	res, err := e.orchestrator.Run(ctx, collection, pages, e.fields)
	if err != nil {
		return nil, fmt.Errorf("process %s: %w", source, err)
	}

	report := &model.DocumentReport{
		ID:           id.String(),
		Source:       source,
		DocumentType: e.docType,
		Collection:   collection,
		ProcessedAt:  time.Now().UTC(),
		Fields:       res.Fields,
		Stats:        res.Stats,
	}
	e.logger.Printf("processed %s in %s: %d found, %d not found, %d errors",
		source, time.Since(start).Round(time.Millisecond),
		res.Stats.FieldsFound, res.Stats.FieldsNotFound, res.Stats.FieldErrors)

	if e.recorder != nil {
		if err := e.recorder.Save(ctx, report); err != nil {
			// The report is still returned; storage is secondary
			e.logger.Printf("save report %s: %v", report.ID, err)
		}
	}
	return report, nil
}

// CollectionName derives the per-run collection name
func CollectionName(base string, id uuid.UUID) string {
	return base + "_" + strings.ReplaceAll(id.String(), "-", "")
}
