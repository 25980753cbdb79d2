package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// GuardConfig bounds request rate and trips a breaker on repeated failures
type GuardConfig struct {
	RequestsPerSecond float64 // <= 0 disables rate limiting
	Burst             int
	MaxFailures       uint32 // consecutive failures before the breaker opens
	Cooldown          time.Duration
}

// Guard wraps a Provider with a rate limiter, a circuit breaker and a span per call.
// It satisfies Provider itself.
type Guard struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	tracer   trace.Tracer
	logger   *log.Logger
}

// NewGuard wraps provider. A nil logger discards breaker transitions.
func NewGuard(provider Provider, cfg GuardConfig, logger *log.Logger) *Guard {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}

	g := &Guard{
		provider: provider,
		tracer:   otel.Tracer("contractrag/llm"),
		logger:   logger,
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	maxFailures := cfg.MaxFailures
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider.Name(),
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			g.logger.Printf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return g
}

// Name returns the wrapped provider's name
func (g *Guard) Name() string {
	return g.provider.Name()
}

// IsAvailable delegates to the wrapped provider
func (g *Guard) IsAvailable(ctx context.Context) bool {
	return g.provider.IsAvailable(ctx)
}

// State reports the breaker state
func (g *Guard) State() gobreaker.State {
	return g.breaker.State()
}

// Complete waits for the limiter, then calls the provider through the breaker.
// An open breaker fails fast with gobreaker.ErrOpenState.
func (g *Guard) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, span := g.tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.provider", g.provider.Name()),
		attribute.Int("llm.prompt_chars", len(req.Prompt)),
	))
	defer span.End()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			span.SetAttributes(attribute.Bool("llm.rate_limited", true))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.provider.Complete(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool("llm.circuit_breaker_open", true))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resp := result.(*CompletionResponse)
	span.SetAttributes(
		attribute.String("llm.model", resp.Model),
		attribute.Int("llm.tokens", resp.TokensUsed),
	)
	return resp, nil
}

// Close releases the wrapped provider when it holds resources
func (g *Guard) Close() error {
	if closer, ok := g.provider.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
