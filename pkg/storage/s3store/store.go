// Package s3store provides a storage.Store backed by objects in an S3
// bucket. Each key is one object under the configured prefix; the object
// body is the stored value.
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := s3store.New(s3.NewFromConfig(cfg), "my-bucket", s3store.WithPrefix("prefs/"))
//	prefs := storage.UseState(o, store, "user-42", Prefs{})
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/vango-dev/statesync/pkg/storage"
)

// DefaultPrefix is the object key prefix unless WithPrefix is given.
const DefaultPrefix = "statesync/"

// API is the subset of *s3.Client used by Store.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store persists keyed values as S3 objects.
type Store struct {
	client API
	bucket string
	prefix string
	closed atomic.Bool
}

// Option configures a Store.
type Option func(*config)

type config struct {
	prefix string
}

// WithPrefix sets the object key prefix. Default: "statesync/".
func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

// New creates a store writing to bucket through client.
func New(client API, bucket string, opts ...Option) *Store {
	cfg := &config{prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Store{
		client: client,
		bucket: bucket,
		prefix: cfg.prefix,
	}
}

// Open creates a client from the default AWS configuration chain. A
// non-empty endpoint selects an S3-compatible server with path-style
// addressing (MinIO, LocalStack).
func Open(ctx context.Context, bucket, endpoint string, opts ...Option) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3store: bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3store: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return New(client, bucket, opts...), nil
}

func (s *Store) key(k string) *string {
	return aws.String(s.prefix + k)
}

// Get implements storage.Store.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, storage.ErrClosed
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.key(key),
	})
	if isNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("s3store: get %q: %w", key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return "", false, fmt.Errorf("s3store: read %q: %w", key, err)
	}
	return string(body), true, nil
}

// Set implements storage.Store.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         s.key(key),
		Body:        bytes.NewReader([]byte(value)),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("s3store: set %q: %w", key, err)
	}
	return nil
}

// Remove implements storage.Store.
func (s *Store) Remove(ctx context.Context, key string) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    s.key(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("s3store: remove %q: %w", key, err)
	}
	return nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
