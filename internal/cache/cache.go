package cache

import (
	"context"
	"time"
)

// Backend is the uniform contract over a cache store. Get reports absence as
// (nil, false, nil); an error means transport failure, never "not found".
// Available is a cheap liveness probe that must not return an error.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Available(ctx context.Context) bool
	Close() error
}

// Store is the error-absorbing surface the rest of the application caches
// through. Implementations never surface backend failures: a failed read is
// a miss and a failed write is dropped.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}
