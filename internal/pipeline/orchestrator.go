// Package pipeline resolves contract fields against a per-document vector collection
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/ppiankov/contractrag/internal/chunk"
	"github.com/ppiankov/contractrag/internal/extract"
	"github.com/ppiankov/contractrag/internal/index"
	"github.com/ppiankov/contractrag/internal/model"
	"github.com/ppiankov/contractrag/internal/retrieval"
	"github.com/ppiankov/contractrag/internal/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const dropTimeout = 30 * time.Second

// Embedder embeds chunk texts and queries into unit vectors
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Extractor asks the model for one field
type Extractor interface {
	Extract(ctx context.Context, req extract.Request) (extract.Outcome, error)
}

// Options tunes an Orchestrator
type Options struct {
	DefaultK int         // Retrieval depth for single fields
	GroupedK int         // Retrieval depth for grouped fields
	Workers  int         // Fields resolved concurrently; <= 1 is sequential
	Logger   *log.Logger // nil discards
}

// Orchestrator runs one document through chunking, indexing and field resolution
type Orchestrator struct {
	splitter  *chunk.Splitter
	embedder  Embedder
	index     index.Index
	extractor Extractor
	defaultK  int
	groupedK  int
	workers   int
	logger    *log.Logger
	tracer    trace.Tracer
}

// NewOrchestrator wires the components of one extraction run
func NewOrchestrator(splitter *chunk.Splitter, embedder Embedder, idx index.Index, extractor Extractor, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Orchestrator{
		splitter:  splitter,
		embedder:  embedder,
		index:     idx,
		extractor: extractor,
		defaultK:  opts.DefaultK,
		groupedK:  opts.GroupedK,
		workers:   opts.Workers,
		logger:    logger,
		tracer:    otel.Tracer("github.com/ppiankov/contractrag/internal/pipeline"),
	}
}

// Result is the outcome of one run
type Result struct {
	Fields      []model.FieldOutput // Declared order, grouped fields expanded
	Resolutions []*Resolution       // One per field spec, declared order
	Stats       model.RunStats
}

// Run indexes pages into collection, resolves every field and drops the
// collection before returning, whatever the outcome. Configuration and
// index setup errors abort the run with no partial result; per-field
// failures degrade that field to null.
func (o *Orchestrator) Run(ctx context.Context, collection string, pages []model.Page, fields []model.FieldSpec) (res *Result, err error) {
	if err := model.ValidateFieldSpecs(fields); err != nil {
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("collection", collection),
		attribute.Int("pages", len(pages)),
		attribute.Int("fields", len(fields)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	defer o.drop(ctx, collection)
	if err := o.index.Reset(ctx, collection, o.embedder.Dimension()); err != nil {
		return nil, &model.IndexLifecycleError{Op: "reset", Collection: collection, Err: err}
	}

	chunks, err := o.ingest(ctx, collection, pages)
	if err != nil {
		return nil, err
	}

	retriever := retrieval.New(o.embedder, o.index, collection)
	resolutions := o.resolveAll(ctx, retriever, fields)

	res = &Result{Resolutions: resolutions}
	res.Stats.Pages = len(pages)
	res.Stats.Chunks = chunks
	for _, r := range resolutions {
		res.Fields = append(res.Fields, r.Outputs()...)
		switch {
		case r.Err != nil:
			res.Stats.FieldErrors++
			res.Stats.FieldsNotFound++
		case r.State == StateFound:
			res.Stats.FieldsFound++
		default:
			res.Stats.FieldsNotFound++
		}
	}

	// Field failures are contained, but a canceled run is not a result
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// ingest chunks, embeds and inserts all pages before any field is resolved
func (o *Orchestrator) ingest(ctx context.Context, collection string, pages []model.Page) (int, error) {
	chunks := o.splitter.SplitPages(pages)
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := o.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	for i := range chunks {
		chunks[i].Embedding = vecs[i]
	}

	if _, err := o.index.Insert(ctx, collection, chunks...); err != nil {
		return 0, &model.IndexLifecycleError{Op: "insert", Collection: collection, Err: err}
	}
	o.logger.Printf("indexed %d chunks from %d pages into %s", len(chunks), len(pages), collection)
	return len(chunks), nil
}

// drop runs even when the caller's context has ended; failures are only logged
func (o *Orchestrator) drop(ctx context.Context, collection string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dropTimeout)
	defer cancel()
	if err := o.index.Drop(ctx, collection); err != nil {
		o.logger.Printf("%v", &model.IndexLifecycleError{Op: "drop", Collection: collection, Err: err})
	}
}

func (o *Orchestrator) resolveAll(ctx context.Context, retriever *retrieval.Retriever, fields []model.FieldSpec) []*Resolution {
	out := make([]*Resolution, len(fields))

	if o.workers <= 1 {
		for i, f := range fields {
			out[i] = o.resolve(ctx, retriever, f)
		}
		return out
	}

	jobs := make([]worker.Job, len(fields))
	for i, f := range fields {
		jobs[i] = &fieldJob{orchestrator: o, retriever: retriever, field: f}
	}
	for i, r := range worker.Run(ctx, o.workers, jobs) {
		if r == nil {
			// Never started because ctx ended
			out[i] = exhausted(fields[i], ctx.Err())
			continue
		}
		out[i] = r.(*Resolution)
	}
	return out
}

// resolve tries candidate queries in order; the first found answer wins
func (o *Orchestrator) resolve(ctx context.Context, retriever *retrieval.Retriever, field model.FieldSpec) *Resolution {
	ctx, span := o.tracer.Start(ctx, "pipeline.field", trace.WithAttributes(
		attribute.String("field", field.Name),
		attribute.String("field.kind", string(field.Kind())),
	))
	defer span.End()

	k := field.TopK(o.defaultK, o.groupedK)
	hint := field.Hint()
	res := &Resolution{Field: field, State: StateExhausted, QueryIndex: -1}

	for qi, query := range field.CandidateQueries() {
		passages, err := retriever.Retrieve(ctx, query, k)
		if err != nil {
			return o.fail(span, res, err)
		}

		outcome, err := o.extractor.Extract(ctx, extract.Request{Field: field, Query: hint, Passages: passages})
		res.Attempts += outcome.Attempts
		if err != nil {
			return o.fail(span, res, fmt.Errorf("extract: %w", err))
		}
		if outcome.Found() {
			res.State = StateFound
			res.QueryIndex = qi
			res.Outcome = outcome
			break
		}
	}

	span.SetAttributes(
		attribute.String("field.state", string(res.State)),
		attribute.Int("field.query_index", res.QueryIndex),
		attribute.Int("field.attempts", res.Attempts),
	)
	return res
}

func (o *Orchestrator) fail(span trace.Span, res *Resolution, err error) *Resolution {
	res.State = StateExhausted
	res.Err = err
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	o.logger.Printf("field %s: %v", res.Field.Name, err)
	return res
}

type fieldJob struct {
	orchestrator *Orchestrator
	retriever    *retrieval.Retriever
	field        model.FieldSpec
}

func (j *fieldJob) Execute(ctx context.Context) worker.Result {
	return j.orchestrator.resolve(ctx, j.retriever, j.field)
}
