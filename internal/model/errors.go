package model

import (
	"errors"
	"fmt"
)

var (
	// ErrCollectionNotFound is returned when searching or inserting into a dropped or never-created collection
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrDimensionMismatch is returned when a vector does not match the collection dimension
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// MalformedExtractionError describes one failed extraction attempt.
// It never leaves the extractor; it is logged and the attempt is retried.
type MalformedExtractionError struct {
	Field   string
	Attempt int
	Reason  string
	Err     error
}

func (e *MalformedExtractionError) Error() string {
	msg := fmt.Sprintf("malformed extraction for %q (attempt %d): %s", e.Field, e.Attempt, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedExtractionError) Unwrap() error {
	return e.Err
}

// RetrievalError wraps an embedding or vector search failure for one query
type RetrievalError struct {
	Query string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed for query %q: %v", e.Query, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// IndexLifecycleError wraps a collection create, insert or drop failure
type IndexLifecycleError struct {
	Op         string // reset, insert, drop
	Collection string
	Err        error
}

func (e *IndexLifecycleError) Error() string {
	return fmt.Sprintf("index %s %q: %v", e.Op, e.Collection, e.Err)
}

func (e *IndexLifecycleError) Unwrap() error {
	return e.Err
}

// ConfigurationError is fatal for the whole document
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error: field %q: %s", e.Field, e.Reason)
	}
	return "configuration error: " + e.Reason
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
