package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"xetra/internal/store"
)

// Stores holds the opened source and target object stores. Close releases
// any backend resources.
type Stores struct {
	Source store.ObjectStore
	Target store.ObjectStore
	closers []func() error
}

// Close closes the stores that hold resources.
func (s *Stores) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenStores opens the source and target stores of the configured backend.
func (c *Config) OpenStores() (*Stores, error) {
	switch c.Storage.Backend {
	case "fs":
		return &Stores{
			Source: store.NewFSStore(filepath.Join(c.Storage.DataDir, c.Storage.SourceBucket)),
			Target: store.NewFSStore(filepath.Join(c.Storage.DataDir, c.Storage.TargetBucket)),
		}, nil

	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(c.Storage.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlite dir: %w", err)
		}
		src, err := store.NewSQLiteStore(c.Storage.SQLitePath, c.Storage.SourceBucket)
		if err != nil {
			return nil, err
		}
		dst, err := store.NewSQLiteStore(c.Storage.SQLitePath, c.Storage.TargetBucket)
		if err != nil {
			src.Close()
			return nil, err
		}
		return &Stores{Source: src, Target: dst, closers: []func() error{src.Close, dst.Close}}, nil

	case "s3":
		access, secret := os.Getenv(c.S3.AccessKeyEnv), os.Getenv(c.S3.SecretKeyEnv)
		src, err := store.NewS3Store(c.s3Options(c.S3.SourceEndpoint, c.Storage.SourceBucket, access, secret))
		if err != nil {
			return nil, fmt.Errorf("source bucket: %w", err)
		}
		dst, err := store.NewS3Store(c.s3Options(c.S3.TargetEndpoint, c.Storage.TargetBucket, access, secret))
		if err != nil {
			return nil, fmt.Errorf("target bucket: %w", err)
		}
		return &Stores{Source: src, Target: dst}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
}

func (c *Config) s3Options(endpoint, bucket, access, secret string) store.S3Options {
	return store.S3Options{
		EndpointURL: endpoint,
		AccessKey:   access,
		SecretKey:   secret,
		Region:      c.S3.Region,
		Bucket:      bucket,
		MaxAttempts: c.S3.MaxAttempts,
		RetryDelay:  c.S3.RetryDelay,
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
