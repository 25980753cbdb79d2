package extract

import (
	"context"
	"io"
	"log"

	"github.com/ppiankov/contractrag/internal/llm"
	"github.com/ppiankov/contractrag/internal/model"
)

// DefaultMaxAttempts bounds model calls per extraction
const DefaultMaxAttempts = 3

// Request is one extraction: a field, the query shown to the model and
// the retrieved passages in rank order
type Request struct {
	Field    model.FieldSpec
	Query    string
	Passages []model.Passage
}

// Outcome holds the result of an extraction. Single fields fill Result;
// grouped fields fill Subfields with the subfields the model returned.
type Outcome struct {
	Kind      model.FieldKind
	Result    model.ExtractionResult
	Subfields map[string]model.ExtractionResult
	Attempts  int
	Exhausted bool
}

// Found reports whether the outcome resolves its field. A grouped field
// needs at least one subfield with a non-null value.
func (o Outcome) Found() bool {
	if o.Kind == model.FieldKindGrouped {
		for _, r := range o.Subfields {
			if r.Found {
				return true
			}
		}
		return false
	}
	return o.Result.Found
}

// Extractor asks a language model for a field value and validates the answer
type Extractor struct {
	provider    llm.Provider
	maxAttempts int
	model       string
	maxTokens   int
	temperature float32
	logger      *log.Logger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithMaxAttempts sets the number of model calls before giving up
func WithMaxAttempts(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithLogger logs failed attempts
func WithLogger(l *log.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithModel overrides provider defaults for model, token limit and temperature
func WithModel(name string, maxTokens int, temperature float32) Option {
	return func(e *Extractor) {
		e.model = name
		e.maxTokens = maxTokens
		e.temperature = temperature
	}
}

// New creates an extractor over a provider
func New(provider llm.Provider, opts ...Option) *Extractor {
	e := &Extractor{
		provider:    provider,
		maxAttempts: DefaultMaxAttempts,
		logger:      log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract calls the model until it returns a well-formed answer or the
// attempt budget runs out. Exhaustion is not an error: it yields a null
// result for single fields and no subfields for grouped ones. The only
// error returned is the context's.
func (e *Extractor) Extract(ctx context.Context, req Request) (Outcome, error) {
	kind := req.Field.Kind()
	prompt := BuildPrompt(req.Field, req.Query, req.Passages)

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome{Kind: kind, Result: model.NullResult(), Attempts: attempt - 1}, err
		}

		resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
			System:      SystemPrompt,
			Prompt:      prompt,
			Model:       e.model,
			MaxTokens:   e.maxTokens,
			Temperature: e.temperature,
		})
		if err != nil {
			e.logFailure(&model.MalformedExtractionError{
				Field: req.Field.Name, Attempt: attempt, Reason: "completion failed", Err: err,
			})
			continue
		}

		out, err := parseResponse(req.Field, resp.Text)
		if err != nil {
			e.logFailure(&model.MalformedExtractionError{
				Field: req.Field.Name, Attempt: attempt, Reason: "unparseable answer", Err: err,
			})
			continue
		}
		out.Attempts = attempt
		return out, nil
	}

	out := Outcome{Kind: kind, Attempts: e.maxAttempts, Exhausted: true}
	if kind == model.FieldKindGrouped {
		out.Subfields = map[string]model.ExtractionResult{}
	} else {
		out.Result = model.NullResult()
	}
	return out, nil
}

func parseResponse(field model.FieldSpec, text string) (Outcome, error) {
	block, err := extractBlock(text)
	if err != nil {
		return Outcome{}, err
	}

	if field.Kind() == model.FieldKindGrouped {
		subs, err := parseGrouped(block, field.Subfields)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: model.FieldKindGrouped, Subfields: subs}, nil
	}

	res, err := parseSingle(block)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Kind: model.FieldKindSingle, Result: res}, nil
}

func (e *Extractor) logFailure(err *model.MalformedExtractionError) {
	e.logger.Printf("extract: %v", err)
}
