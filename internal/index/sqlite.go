package index

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/contractrag/internal/model"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteIndex stores collections in a SQLite database and scans them on search.
// Suitable for the per-document collections this engine builds.
type SQLiteIndex struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates an index database. Use ":memory:" for a
// process-local database.
func OpenSQLite(path string) (*SQLiteIndex, error) {
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
	// One connection keeps ":memory:" databases alive and serialises writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteIndex{db: db, path: path}, nil
}

// Reset drops the collection and recreates it empty
func (s *SQLiteIndex) Reset(ctx context.Context, collection string, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid dimension %d", dim)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE collection = ?", collection); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", collection); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO collections (name, dimension, created_at) VALUES (?, ?, ?)",
		collection, dim, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return tx.Commit()
}

// Insert stores chunks in one transaction
func (s *SQLiteIndex) Insert(ctx context.Context, collection string, chunks ...model.Chunk) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	dim, err := collectionDim(ctx, tx, collection)
	if err != nil {
		return nil, err
	}
	if err := checkChunks(chunks, dim); err != nil {
		return nil, err
	}

	var seq int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), -1) + 1 FROM chunks WHERE collection = ?", collection).Scan(&seq); err != nil {
		return nil, fmt.Errorf("failed to read sequence: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, collection, seq, text, page_number, vector)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = uuid.NewString()
		if _, err := stmt.ExecContext(ctx, ids[i], collection, seq+i, c.Text, c.PageNumber, vectorToBlob(c.Embedding)); err != nil {
			return nil, fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return ids, nil
}

// Search loads the collection's vectors and ranks them by dot product
func (s *SQLiteIndex) Search(ctx context.Context, collection string, vector []float32, k int) ([]model.ScoredChunk, error) {
	dim, err := collectionDim(ctx, s.db, collection)
	if err != nil {
		return nil, err
	}
	if err := checkQuery(vector, dim); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, text, page_number, vector FROM chunks WHERE collection = ? ORDER BY seq", collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var results []model.ScoredChunk
	for rows.Next() {
		var (
			c    model.ScoredChunk
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.Text, &c.PageNumber, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		vec, err := blobToVector(blob)
		if err != nil || len(vec) != dim {
			continue // Skip malformed vectors
		}
		c.Score = dot(vector, vec)
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return rankTopK(results, k), nil
}

// Drop deletes the collection and its chunks
func (s *SQLiteIndex) Drop(ctx context.Context, collection string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE collection = ?", collection); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return tx.Commit()
}

// Exists reports whether the collection row is present
func (s *SQLiteIndex) Exists(ctx context.Context, collection string) (bool, error) {
	_, err := collectionDim(ctx, s.db, collection)
	if errors.Is(err, model.ErrCollectionNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Close closes the database
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func collectionDim(ctx context.Context, q queryRower, collection string) (int, error) {
	var dim int
	err := q.QueryRowContext(ctx, "SELECT dimension FROM collections WHERE name = ?", collection).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("collection %q: %w", collection, model.ErrCollectionNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read collection: %w", err)
	}
	return dim, nil
}
