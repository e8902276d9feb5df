// Package sqlite implements the shared store on a single SQLite database.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jaakkos/swarmwork/internal/app"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	category TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	writer TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 0,
	tags TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (category, key)
);
`

// indexes for the common query patterns (per-category scans, priority order)
const indexes = `
CREATE INDEX IF NOT EXISTS idx_entries_category_priority ON entries(category, priority DESC);
CREATE INDEX IF NOT EXISTS idx_entries_category_created ON entries(category, created_at);
`

// Store implements app.SharedStore using SQLite.
type Store struct {
	db *sql.DB
}

// New opens the SQLite database at path (creating parent dirs and schema).
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	if _, err := db.Exec(indexes); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite indexes: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database connection. Call on shutdown for clean exit.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Write upserts the (category, key) entry. The original created_at is kept on
// overwrite; conflicting concurrent writes resolve last-writer-wins.
func (s *Store) Write(category, key string, value any, writer string, opts app.WriteOptions) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for %s/%s: %w", category, key, err)
	}
	tags, err := json.Marshal(opts.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags for %s/%s: %w", category, key, err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.Exec(`
		INSERT INTO entries (category, key, value, writer, priority, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(category, key) DO UPDATE SET
			value = excluded.value,
			writer = excluded.writer,
			priority = excluded.priority,
			tags = excluded.tags,
			updated_at = excluded.updated_at`,
		category, key, string(raw), writer, opts.Priority, string(tags), now, now)
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", category, key, err)
	}
	return nil
}

// Read returns the entry at (category, key), or (nil, nil) when absent.
func (s *Store) Read(category, key, reader string) (*app.Entry, error) {
	row := s.db.QueryRow(
		"SELECT category, key, value, writer, priority, tags, created_at, updated_at FROM entries WHERE category = ? AND key = ?",
		category, key)
	entry, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", category, key, err)
	}
	return entry, nil
}

// Query returns entries matching the filter. Tag matching (all listed tags
// present) happens after the category scan; sorting is done in SQL.
func (s *Store) Query(reader string, filter app.EntryFilter) ([]app.Entry, error) {
	q := "SELECT category, key, value, writer, priority, tags, created_at, updated_at FROM entries"
	var args []any
	if filter.Category != "" {
		q += " WHERE category = ?"
		args = append(args, filter.Category)
	}
	if filter.SortBy == "priority" {
		q += " ORDER BY priority DESC, created_at"
	} else {
		q += " ORDER BY created_at"
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []app.Entry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if !hasAllTags(*entry, filter.Tags) {
			continue
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

func scanEntry(scan func(dest ...any) error) (*app.Entry, error) {
	var e app.Entry
	var value, tags, createdAt, updatedAt string
	if err := scan(&e.Category, &e.Key, &value, &e.Writer, &e.Priority, &tags, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.Value = json.RawMessage(value)
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return nil, fmt.Errorf("parse tags: %w", err)
	}
	var err error
	if e.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &e, nil
}

func hasAllTags(e app.Entry, tags []string) bool {
	for _, t := range tags {
		if !e.HasTag(t) {
			return false
		}
	}
	return true
}

// parseTime parses RFC3339Nano or returns zero time and error.
func parseTime(s, context string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: parse timestamp %q: %w", context, s, err)
	}
	return t, nil
}
