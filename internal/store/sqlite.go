package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ ObjectStore = (*SQLiteStore)(nil)

const createObjectsTable = `
CREATE TABLE IF NOT EXISTS objects (
	bucket     TEXT    NOT NULL,
	key        TEXT    NOT NULL,
	body       BLOB    NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (bucket, key)
)`

// SQLiteStore implements ObjectStore on a single SQLite table. Several
// logical buckets can share one database file.
type SQLiteStore struct {
	db     *sql.DB
	bucket string
	path   string
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns
// a store scoped to bucket.
func NewSQLiteStore(dbPath, bucket string) (*SQLiteStore, error) {
	// The target and source buckets may share the file through two handles.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	// A single connection serialises writers inside this process.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createObjectsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating objects table: %w", err)
	}
	return &SQLiteStore{db: db, bucket: bucket, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Location returns "sqlite://<path>#<bucket>".
func (s *SQLiteStore) Location() string {
	return "sqlite://" + s.path + "#" + s.bucket
}

// List returns keys in the bucket that start with prefix, sorted.
func (s *SQLiteStore) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM objects WHERE bucket = ? AND substr(key, 1, ?) = ? ORDER BY key`,
		s.bucket, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("listing %q: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Get returns the body stored under key.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM objects WHERE bucket = ? AND key = ?`, s.bucket, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", key, err)
	}
	return body, nil
}

// Put inserts or replaces the object under key.
func (s *SQLiteStore) Put(ctx context.Context, key string, body []byte) error {
	if body == nil {
		body = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO objects (bucket, key, body, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (bucket, key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		s.bucket, key, body, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}
