package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/ppiankov/contractrag/internal/cache"
	"github.com/ppiankov/contractrag/internal/chunk"
	"github.com/ppiankov/contractrag/internal/document"
	"github.com/ppiankov/contractrag/internal/embedding"
	"github.com/ppiankov/contractrag/internal/extract"
	"github.com/ppiankov/contractrag/internal/index"
	"github.com/ppiankov/contractrag/internal/llm"
	"github.com/ppiankov/contractrag/internal/model"
)

// Build assembles an engine from configuration. The returned close
// function releases the index, embedding client and model client.
func Build(ctx context.Context, cfg *model.Config, fields []model.FieldSpec, logger *log.Logger, opts ...EngineOption) (*Engine, func() error, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if err := model.ValidateFieldSpecs(fields); err != nil {
		return nil, nil, err
	}

	splitter, err := chunk.NewSplitter(cfg.Chunking.MaxSize, cfg.Chunking.Overlap)
	if err != nil {
		return nil, nil, err
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	embedder, err := embedding.New(ctx, cfg.Embedding, cache.New(cfg.Cache), time.Duration(cfg.Cache.TTLHours)*time.Hour)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding: %w", err)
	}
	closers = append(closers, embedder.Close)

	idx, err := index.New(cfg.Index)
	if err != nil {
		_ = closeAll()
		return nil, nil, fmt.Errorf("index: %w", err)
	}
	closers = append(closers, idx.Close)

	provider, err := llm.NewProvider(ctx, llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		_ = closeAll()
		return nil, nil, fmt.Errorf("llm: %w", err)
	}
	guard := llm.NewGuard(provider, llm.GuardConfigFromModel(cfg.LLM), logger)
	closers = append(closers, guard.Close)

	extractor := extract.New(guard,
		extract.WithMaxAttempts(cfg.Extraction.MaxAttempts),
		extract.WithModel(cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Temperature),
		extract.WithLogger(logger),
	)

	orchestrator := NewOrchestrator(splitter, embedder, idx, extractor, Options{
		DefaultK: cfg.Extraction.DefaultK,
		GroupedK: cfg.Extraction.GroupedK,
		Workers:  cfg.Extraction.Workers,
		Logger:   logger,
	})

	engineOpts := append([]EngineOption{WithEngineLogger(logger)}, opts...)
	engine := NewEngine(document.NewReader(cfg.Input), orchestrator, fields, cfg.Index.Collection, engineOpts...)

	logger.Printf("engine ready: embedding=%s index=%s llm=%s fields=%d",
		embedder.Name(), cfg.Index.Backend, guard.Name(), len(fields))
	return engine, closeAll, nil
}
