// Package store persists document reports in SQLite
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/contractrag/internal/model"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// CurrentSchemaVersion is the version of the database schema
const CurrentSchemaVersion = 1

// Fixed-width timestamps sort correctly as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned by Get for an unknown report id
var ErrNotFound = errors.New("report not found")

// ResultStore keeps one row per processed document and one per field output
type ResultStore struct {
	db   *sql.DB
	path string
}

// Summary is a stored report without its field outputs
type Summary struct {
	ID           string
	Source       string
	DocumentType string
	ProcessedAt  time.Time
	Stats        model.RunStats
}

// ListOptions filters List
type ListOptions struct {
	DocumentType string // Empty lists every type
	Limit        int    // <= 0 means no limit
}

// Open opens or creates a result database at path
func Open(path string) (*ResultStore, error) {
	pragmas := "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		pragmas += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", path+pragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &ResultStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *ResultStore) Close() error {
	return s.db.Close()
}

func (s *ResultStore) migrate() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.Exec("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
			CurrentSchemaVersion, time.Now().UTC().Format(time.RFC3339))
		return err
	case err != nil:
		return fmt.Errorf("failed to get schema version: %w", err)
	case version > CurrentSchemaVersion:
		return fmt.Errorf("database schema version %d is newer than supported %d", version, CurrentSchemaVersion)
	}
	return nil
}

// Save stores a report. Saving the same id again replaces it.
func (s *ResultStore) Save(ctx context.Context, report *model.DocumentReport) error {
	if report.ID == "" {
		return errors.New("report has no id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", report.ID); err != nil {
		return fmt.Errorf("failed to replace report: %w", err)
	}

	st := report.Stats
	if _, err := tx.ExecContext(ctx, `INSERT INTO documents
		(id, source, document_type, collection, processed_at, pages, chunks, fields_found, fields_not_found, field_errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.Source, report.DocumentType, report.Collection,
		report.ProcessedAt.UTC().Format(timeLayout),
		st.Pages, st.Chunks, st.FieldsFound, st.FieldsNotFound, st.FieldErrors,
	); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO field_outputs (document_id, seq, field, value, page_num) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range report.Fields {
		value, err := json.Marshal(f.Value)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", f.Field, err)
		}
		if _, err := stmt.ExecContext(ctx, report.ID, i, f.Field, string(value), f.PageNum); err != nil {
			return fmt.Errorf("failed to insert field %s: %w", f.Field, err)
		}
	}

	return tx.Commit()
}

// Get loads a full report by id
func (s *ResultStore) Get(ctx context.Context, id string) (*model.DocumentReport, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, source, document_type, collection, processed_at,
		pages, chunks, fields_found, fields_not_found, field_errors
		FROM documents WHERE id = ?`, id)

	var (
		report      model.DocumentReport
		processedAt string
	)
	st := &report.Stats
	if err := row.Scan(&report.ID, &report.Source, &report.DocumentType, &report.Collection, &processedAt,
		&st.Pages, &st.Chunks, &st.FieldsFound, &st.FieldsNotFound, &st.FieldErrors); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	report.ProcessedAt = parseTime(processedAt)

	rows, err := s.db.QueryContext(ctx, "SELECT field, value, page_num FROM field_outputs WHERE document_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, fmt.Errorf("failed to read fields: %w", err)
	}
	defer rows.Close()

	report.Fields = []model.FieldOutput{}
	for rows.Next() {
		var (
			out   model.FieldOutput
			value string
		)
		if err := rows.Scan(&out.Field, &value, &out.PageNum); err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		if err := json.Unmarshal([]byte(value), &out.Value); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", out.Field, err)
		}
		report.Fields = append(report.Fields, out)
	}
	return &report, rows.Err()
}

// List returns report summaries, newest first
func (s *ResultStore) List(ctx context.Context, opts ListOptions) ([]Summary, error) {
	query := `SELECT id, source, document_type, processed_at, pages, chunks, fields_found, fields_not_found, field_errors
		FROM documents`
	var args []any
	if opts.DocumentType != "" {
		query += " WHERE document_type = ?"
		args = append(args, opts.DocumentType)
	}
	query += " ORDER BY processed_at DESC, id"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum         Summary
			processedAt string
		)
		st := &sum.Stats
		if err := rows.Scan(&sum.ID, &sum.Source, &sum.DocumentType, &processedAt,
			&st.Pages, &st.Chunks, &st.FieldsFound, &st.FieldsNotFound, &st.FieldErrors); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		sum.ProcessedAt = parseTime(processedAt)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
