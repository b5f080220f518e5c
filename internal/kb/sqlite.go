package kb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const artifactSchema = `CREATE TABLE IF NOT EXISTS artifacts (
	category   TEXT NOT NULL,
	name       TEXT NOT NULL,
	payload    TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (category, name)
)`

// SQLiteSink stores artifacts as JSON rows keyed by category and name
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens or creates the database at path
func NewSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		artifactSchema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	}
	return &SQLiteSink{db: db}, nil
}

// Put upserts the artifact row
func (s *SQLiteSink) Put(ctx context.Context, a Artifact) error {
	data, err := json.Marshal(a.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", a.Key(), err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO artifacts (category, name, payload, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(category, name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		a.Category, a.Name, string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store %s: %w", a.Key(), err)
	}
	return nil
}

// Clear deletes every row of the category
func (s *SQLiteSink) Clear(ctx context.Context, category string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE category = ?`, category); err != nil {
		return fmt.Errorf("clear %s: %w", category, err)
	}
	return nil
}

// Get returns the raw JSON of an artifact
func (s *SQLiteSink) Get(ctx context.Context, category, name string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM artifacts WHERE category = ? AND name = ?`, category, name).Scan(&payload)
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

// Close closes the database
func (s *SQLiteSink) Close(ctx context.Context) error {
	return s.db.Close()
}
