package model

import "time"

// DocumentReport is the result of processing one document
type DocumentReport struct {
	ID           string        `json:"id"`                      // Run identifier
	Source       string        `json:"source"`                  // Path or URI the pages were loaded from
	DocumentType string        `json:"document_type,omitempty"` // Catalog used (sow, msa, custom)
	Collection   string        `json:"collection"`              // Vector collection used for the run
	ProcessedAt  time.Time     `json:"processed_at"`
	Fields       []FieldOutput `json:"fields"`
	Stats        RunStats      `json:"stats"`
}

// RunStats summarizes one processing run
type RunStats struct {
	Pages          int `json:"pages"`
	Chunks         int `json:"chunks"`
	FieldsFound    int `json:"fields_found"`
	FieldsNotFound int `json:"fields_not_found"`
	FieldErrors    int `json:"field_errors"` // Fields degraded to null by a retrieval or extraction error
}
