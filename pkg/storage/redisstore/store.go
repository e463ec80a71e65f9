// Package redisstore provides a Redis-backed storage.Store, for state
// shared by several processes.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vango-dev/statesync/pkg/storage"
)

// DefaultPrefix is prepended to every key unless WithPrefix is given.
const DefaultPrefix = "statesync:"

// Store persists keyed values in Redis.
type Store struct {
	client     redis.UniversalClient
	prefix     string
	ttl        time.Duration
	ownsClient bool
	closed     atomic.Bool
}

// Option configures a Store.
type Option func(*config)

type config struct {
	prefix string
	ttl    time.Duration
}

// WithPrefix sets the key prefix. Default: "statesync:".
func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

// WithTTL expires keys ttl after their last write. Zero (the default)
// keeps keys forever.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.ttl = ttl
	}
}

// New wraps an existing client. Close does not close the client, as it may
// be shared with other components.
func New(client redis.UniversalClient, opts ...Option) *Store {
	cfg := &config{prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Store{
		client: client,
		prefix: cfg.prefix,
		ttl:    cfg.ttl,
	}
}

// Dial connects to the Redis server at addr and verifies the connection.
// Close closes the connection.
func Dial(ctx context.Context, addr string, opts ...Option) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping %s: %w", addr, err)
	}
	s := New(client, opts...)
	s.ownsClient = true
	return s, nil
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

// Get implements storage.Store.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, storage.ErrClosed
	}

	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redisstore: get %q: %w", key, err)
	}
	return v, true, nil
}

// Set implements storage.Store.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}

	if err := s.client.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: set %q: %w", key, err)
	}
	return nil
}

// Remove implements storage.Store.
func (s *Store) Remove(ctx context.Context, key string) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}

	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redisstore: remove %q: %w", key, err)
	}
	return nil
}

// Prefix returns the key prefix.
func (s *Store) Prefix() string {
	return s.prefix
}

// Close marks the store closed, closing the client if Dial created it.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.ownsClient {
		return s.client.Close()
	}
	return nil
}
