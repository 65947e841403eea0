// Package redis implements the remote cache backend on a Redis server.
// Expiration is delegated to Redis' native TTL mechanism; eviction under
// memory pressure is whatever policy the server is configured with.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config contains Redis connection details.
type Config struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Backend is a cache backend backed by a Redis server. The client is safe
// for concurrent use; the backend holds no other state.
type Backend struct {
	client *redis.Client
}

// New creates a Redis backend. No connection is attempted here: liveness is
// the caller's concern, probed through Available.
func New(cfg Config) *Backend {
	return &Backend{client: redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})}
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *Backend {
	return &Backend{client: client}
}

// Get returns the value stored under key. Absence is (nil, false, nil);
// an error always means transport failure.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return data, true, nil
}

// Set stores value under key with the given TTL.
func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Available reports whether the server answers a ping.
func (b *Backend) Available(ctx context.Context) bool {
	return b.client.Ping(ctx).Err() == nil
}

// Close closes the client connection pool.
func (b *Backend) Close() error {
	return b.client.Close()
}
