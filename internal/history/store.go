// Package history persists a record of completed archive and
// compression runs so past results survive restarts.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Kind distinguishes the two run types.
type Kind string

const (
	KindArchive     Kind = "archive"
	KindCompression Kind = "compression"
)

// Record is one completed run. Archive runs fill the move counters,
// compression runs the byte and metadata counters; both share the rest.
type Record struct {
	ID         string
	Kind       Kind
	StartedAt  time.Time
	FinishedAt time.Time
	Location   string

	Moved       int
	Skipped     int
	Errors      int
	RemovedDirs int

	Compressed      int
	OriginalBytes   int64
	CompressedBytes int64
	MetadataFull    int
	MetadataPartial int
	MetadataNone    int
	Cancelled       bool
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    location TEXT NOT NULL DEFAULT '',
    moved INTEGER NOT NULL DEFAULT 0,
    skipped INTEGER NOT NULL DEFAULT 0,
    errors INTEGER NOT NULL DEFAULT 0,
    removed_dirs INTEGER NOT NULL DEFAULT 0,
    compressed INTEGER NOT NULL DEFAULT 0,
    original_bytes INTEGER NOT NULL DEFAULT 0,
    compressed_bytes INTEGER NOT NULL DEFAULT 0,
    metadata_full INTEGER NOT NULL DEFAULT 0,
    metadata_partial INTEGER NOT NULL DEFAULT 0,
    metadata_none INTEGER NOT NULL DEFAULT 0,
    cancelled INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`

// Store manages run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts one completed run, assigning an ID when absent.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (
            id, kind, started_at, finished_at, location,
            moved, skipped, errors, removed_dirs,
            compressed, original_bytes, compressed_bytes,
            metadata_full, metadata_partial, metadata_none, cancelled
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		string(rec.Kind),
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
		rec.Location,
		rec.Moved,
		rec.Skipped,
		rec.Errors,
		rec.RemovedDirs,
		rec.Compressed,
		rec.OriginalBytes,
		rec.CompressedBytes,
		rec.MetadataFull,
		rec.MetadataPartial,
		rec.MetadataNone,
		boolToInt(rec.Cancelled),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, started_at, finished_at, location,
            moved, skipped, errors, removed_dirs,
            compressed, original_bytes, compressed_bytes,
            metadata_full, metadata_partial, metadata_none, cancelled
         FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var kind, started, finished string
		var cancelled int
		err := rows.Scan(
			&rec.ID, &kind, &started, &finished, &rec.Location,
			&rec.Moved, &rec.Skipped, &rec.Errors, &rec.RemovedDirs,
			&rec.Compressed, &rec.OriginalBytes, &rec.CompressedBytes,
			&rec.MetadataFull, &rec.MetadataPartial, &rec.MetadataNone, &cancelled,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.Kind = Kind(kind)
		rec.Cancelled = cancelled != 0
		if ts, parseErr := time.Parse(time.RFC3339Nano, started); parseErr == nil {
			rec.StartedAt = ts
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, finished); parseErr == nil {
			rec.FinishedAt = ts
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
