package worker

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter rate-limits document fetches per remote host or bucket.
// Local paths are never throttled.
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a new rate limiter; requestsPerSecond <= 0 disables it
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  limit,
		defaultBurst: burst,
	}
}

// Wait waits for rate limit clearance for the given location
func (l *Limiter) Wait(ctx context.Context, location string) error {
	host, err := extractHost(location)
	if err != nil {
		return err
	}
	if host == "" {
		return ctx.Err()
	}
	return l.getLimiter(host).Wait(ctx)
}

// Allow checks if a fetch is allowed without waiting
func (l *Limiter) Allow(location string) bool {
	host, err := extractHost(location)
	if err != nil {
		return false
	}
	if host == "" {
		return true
	}
	return l.getLimiter(host).Allow()
}

func (l *Limiter) getLimiter(host string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[host]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[host] = limiter

	return limiter
}

// SetHostRate sets a custom rate limit for one host or bucket
func (l *Limiter) SetHostRate(host string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.limiters[host] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// extractHost returns the host of an http(s) URL or the bucket of an s3 URI;
// local paths yield ""
func extractHost(location string) (string, error) {
	if !strings.Contains(location, "://") {
		return "", nil
	}
	parsed, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "http", "https", "s3":
		return parsed.Host, nil
	default:
		return "", nil
	}
}

// WaitWithDelay waits for rate limit and adds an additional delay
func (l *Limiter) WaitWithDelay(ctx context.Context, location string, additionalDelay time.Duration) error {
	if err := l.Wait(ctx, location); err != nil {
		return err
	}

	if additionalDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(additionalDelay):
		}
	}

	return nil
}
