// Package store defines the object store the ETL job reads from and writes
// to, together with its filesystem, SQLite and S3 backends and the
// serialization formats used for stored row sets.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// ObjectStore is a flat key/value object store with whole-object writes.
// There is no conditional put: concurrent writers of one key race, and the
// last Put wins.
type ObjectStore interface {
	// List returns every key that starts with prefix. Order is unspecified.
	List(ctx context.Context, prefix string) ([]string, error)

	// Get returns the object body stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores body under key, replacing any existing object.
	Put(ctx context.Context, key string, body []byte) error

	// Location describes the store for log lines, e.g. "s3://bucket".
	Location() string
}
