package model

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		reason string
	}{
		{"max bytes", func(c *Config) { c.Input.MaxBytes = 0 }, "max_bytes"},
		{"chunk size", func(c *Config) { c.Chunking.MaxSize = 0 }, "max_size"},
		{"overlap too large", func(c *Config) { c.Chunking.Overlap = c.Chunking.MaxSize }, "overlap"},
		{"negative overlap", func(c *Config) { c.Chunking.Overlap = -1 }, "overlap"},
		{"dimension", func(c *Config) { c.Embedding.Dimension = 0 }, "dimension"},
		{"collection", func(c *Config) { c.Index.Collection = " " }, "collection"},
		{"attempts", func(c *Config) { c.Extraction.MaxAttempts = 0 }, "max_attempts"},
		{"format", func(c *Config) { c.Output.Format = "pdf" }, "output format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !IsConfigurationError(err) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.reason) {
				t.Errorf("expected %q in %q", tt.reason, err.Error())
			}
		})
	}
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("boom")

	var retrieval error = &RetrievalError{Query: "q", Err: cause}
	var lifecycle error = &IndexLifecycleError{Op: "insert", Collection: "c", Err: ErrCollectionNotFound}
	var malformed error = &MalformedExtractionError{Field: "f", Attempt: 2, Reason: "no block", Err: cause}

	if !errors.Is(retrieval, cause) || !errors.Is(malformed, cause) {
		t.Error("expected wrapped cause")
	}
	if !errors.Is(lifecycle, ErrCollectionNotFound) {
		t.Error("expected sentinel through IndexLifecycleError")
	}
	if !strings.Contains(malformed.Error(), `"f" (attempt 2): no block: boom`) {
		t.Errorf("unexpected message %q", malformed.Error())
	}
	if (&ConfigurationError{Reason: "x"}).Error() != "configuration error: x" {
		t.Error("unexpected configuration error message")
	}
}
