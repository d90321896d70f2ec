// Package history records question/answer interactions in a local SQLite
// database for later review of what the bot was asked and how it answered.
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

// Interaction is one recorded question/answer exchange.
type Interaction struct {
	ID          string
	Question    string
	Answer      string
	Grounded    bool
	SourceCount int
	DurationMS  int64
	CreatedAt   time.Time
}

// Store persists interactions in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// modernc.org/sqlite is not safe for concurrent writes on one connection
	// pool without serialization; a single connection keeps writes ordered.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS interactions (
	id           TEXT PRIMARY KEY,
	question     TEXT NOT NULL,
	answer       TEXT NOT NULL,
	grounded     INTEGER NOT NULL DEFAULT 0,
	source_count INTEGER NOT NULL DEFAULT 0,
	duration_ms  INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_created_at ON interactions(created_at);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init history schema: %w", err)
	}
	return nil
}

// Record stores one interaction and returns its generated id.
func (s *Store) Record(ctx context.Context, it Interaction) (string, error) {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (id, question, answer, grounded, source_count, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.Question, it.Answer, boolToInt(it.Grounded), it.SourceCount, it.DurationMS,
		it.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("record interaction: %w", err)
	}
	return it.ID, nil
}

// Recent returns up to limit interactions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, answer, grounded, source_count, duration_ms, created_at
		 FROM interactions ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var (
			it        Interaction
			grounded  int
			createdAt string
		)
		if err := rows.Scan(&it.ID, &it.Question, &it.Answer, &grounded, &it.SourceCount, &it.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		it.Grounded = grounded != 0
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			it.CreatedAt = ts
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Count returns the number of recorded interactions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM interactions`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count interactions: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
