package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"xetra/internal/util"
)

// Compile-time interface check.
var _ ObjectStore = (*S3Store)(nil)

// S3Options configures an S3Store.
type S3Options struct {
	// EndpointURL is the S3 endpoint, with or without scheme. An https://
	// scheme (or none) enables TLS; http:// disables it.
	EndpointURL string
	AccessKey   string
	SecretKey   string
	Region      string
	Bucket      string

	MaxAttempts int
	RetryDelay  time.Duration
}

// S3Store implements ObjectStore on one S3 (or S3-compatible) bucket.
type S3Store struct {
	client      *minio.Client
	bucket      string
	endpoint    string
	maxAttempts int
	retryDelay  time.Duration
}

// NewS3Store creates a client for opts.Bucket. Empty credentials produce
// anonymous requests, which public buckets accept.
func NewS3Store(opts S3Options) (*S3Store, error) {
	host, secure := splitEndpoint(opts.EndpointURL)
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating s3 client for %s: %w", opts.EndpointURL, err)
	}

	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &S3Store{
		client:      client,
		bucket:      opts.Bucket,
		endpoint:    opts.EndpointURL,
		maxAttempts: attempts,
		retryDelay:  opts.RetryDelay,
	}, nil
}

// Location returns "<endpoint>/<bucket>".
func (s *S3Store) Location() string {
	return strings.TrimSuffix(s.endpoint, "/") + "/" + s.bucket
}

// List returns every key under prefix.
func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := util.Retry(ctx, s.maxAttempts, s.retryDelay, func() error {
		// Cancelling stops the lister goroutine if we bail out early.
		lctx, cancel := context.WithCancel(ctx)
		defer cancel()

		keys = keys[:0]
		for obj := range s.client.ListObjects(lctx, s.bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		}) {
			if obj.Err != nil {
				return obj.Err
			}
			keys = append(keys, obj.Key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing s3://%s/%s: %w", s.bucket, prefix, err)
	}
	return keys, nil
}

// Get downloads the object under key.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := util.Retry(ctx, s.maxAttempts, s.retryDelay, func() error {
		obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return classifyS3Error(err)
		}
		defer obj.Close()

		data, err = io.ReadAll(obj)
		return classifyS3Error(err)
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading s3://%s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

// Put uploads body under key, replacing any existing object.
func (s *S3Store) Put(ctx context.Context, key string, body []byte) error {
	err := util.Retry(ctx, s.maxAttempts, s.retryDelay, func() error {
		_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)),
			minio.PutObjectOptions{ContentType: contentType(key)})
		return err
	})
	if err != nil {
		return fmt.Errorf("writing s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// classifyS3Error maps a missing key to ErrNotFound, marked permanent so it
// is not retried.
func classifyS3Error(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return util.Permanent(ErrNotFound)
	}
	return err
}

func splitEndpoint(endpoint string) (host string, secure bool) {
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), false
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/"), true
	default:
		return strings.TrimSuffix(endpoint, "/"), true
	}
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".csv":
		return "text/csv"
	case ".parquet":
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}
