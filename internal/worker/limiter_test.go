package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "https://example.com/sow.pdf"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := limiter.Wait(ctx, "s3://contracts/msa.pdf"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_WaitWithDelay(t *testing.T) {
	limiter := NewLimiter(100, 1)

	start := time.Now()
	if err := limiter.WaitWithDelay(context.Background(), "https://example.com", 50*time.Millisecond); err != nil {
		t.Fatalf("WaitWithDelay failed: %v", err)
	}
	if d := time.Since(start); d < 50*time.Millisecond {
		t.Errorf("expected delay >= 50ms, got %v", d)
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	limiter := NewLimiter(1, 1)
	loc := "https://example.com/a.pdf"

	if err := limiter.Wait(context.Background(), loc); err != nil {
		t.Errorf("first wait failed: %v", err)
	}

	// Burst 1 is spent for this host
	if limiter.Allow("https://example.com/b.pdf") {
		t.Error("expected allow to fail (exhausted tokens)")
	}
	if !limiter.Allow("https://other.com/a.pdf") {
		t.Error("expected allow for other host")
	}
}

func TestLimiter_LocalPathsNotThrottled(t *testing.T) {
	limiter := NewLimiter(0.001, 1)
	for i := 0; i < 5; i++ {
		if !limiter.Allow("contracts/sow 100%.pdf") {
			t.Fatal("local paths must never be throttled")
		}
	}
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 10; i++ {
		if !limiter.Allow("https://example.com") {
			t.Fatal("expected unlimited when rate is 0")
		}
	}
}

func TestLimiter_SetHostRate(t *testing.T) {
	limiter := NewLimiter(10, 10)
	limiter.SetHostRate("slow-bucket", 0.1, 1)

	if !limiter.Allow("s3://slow-bucket/a.pdf") {
		t.Error("first request should pass")
	}
	if limiter.Allow("s3://slow-bucket/b.pdf") {
		t.Error("second request should fail")
	}
	if !limiter.Allow("s3://fast-bucket/a.pdf") {
		t.Error("other bucket should pass")
	}
}

func TestExtractHost(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://example.com/foo", "example.com"},
		{"s3://contracts/2024/a.pdf", "contracts"},
		{"contracts/a.pdf", ""},
		{"/abs/path.pdf", ""},
	}
	for _, tt := range tests {
		got, err := extractHost(tt.in)
		if err != nil {
			t.Errorf("%s: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("extractHost(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := extractHost("http://[::1"); err == nil {
		t.Error("expected error for invalid URL")
	}
}
