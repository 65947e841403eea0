package cache

import (
	"context"
	"log/slog"
	"time"
)

// Single adapts one Backend to the error-absorbing Store contract, for
// deployments configured without a remote backend. Failures degrade to
// misses and dropped writes, same as the failover pair.
type Single struct {
	backend   Backend
	logger    *slog.Logger
	opTimeout time.Duration
}

// NewSingle wraps a lone backend.
func NewSingle(b Backend, opTimeout time.Duration, logger *slog.Logger) *Single {
	if logger == nil {
		logger = slog.Default()
	}
	if opTimeout <= 0 {
		opTimeout = 300 * time.Millisecond
	}
	return &Single{backend: b, logger: logger, opTimeout: opTimeout}
}

// Get returns the cached value for key, or a miss on any failure.
func (s *Single) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	value, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Error("cache read failed, degrading to miss", "key", key, "error", err)
		return nil, false
	}
	return value, ok
}

// Set stores value under key, dropping the write on failure.
func (s *Single) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.backend.Set(ctx, key, value, ttl); err != nil {
		s.logger.Error("cache write failed", "key", key, "error", err)
	}
}

// State reports the only backend this store ever routes to.
func (s *Single) State() string { return "local" }

// Close closes the underlying backend.
func (s *Single) Close() error { return s.backend.Close() }
