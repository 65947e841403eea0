package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type backendState int

const (
	remoteActive backendState = iota
	localActive
)

func (s backendState) String() string {
	if s == remoteActive {
		return "remote"
	}
	return "local"
}

// ResilientConfig tunes the failover behavior.
type ResilientConfig struct {
	// OpTimeout bounds every backend call so a dead backend cannot stall
	// the answer pipeline. A timeout is treated as a connectivity failure.
	OpTimeout time.Duration
	// ProbeInterval is the cooldown between opportunistic re-probes of the
	// remote backend while the local fallback is active.
	ProbeInterval time.Duration
}

// Resilient routes cache calls to a remote backend with automatic failover
// to a local one. It owns the active-backend decision exclusively. Callers
// never see a cache error: a read degrades to a miss and a write to a no-op.
//
// Entries written while the local fallback is active are not migrated back
// to the remote backend on recovery; that data loss is accepted and visible
// in the transition logs.
type Resilient struct {
	remote Backend
	local  Backend
	logger *slog.Logger

	opTimeout     time.Duration
	probeInterval time.Duration

	mu        sync.Mutex
	state     backendState
	lastProbe time.Time

	now func() time.Time
}

// NewResilient builds the failover pair and probes the remote backend once
// to pick the initial state.
func NewResilient(remote, local Backend, cfg ResilientConfig, logger *slog.Logger) *Resilient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 300 * time.Millisecond
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 30 * time.Second
	}
	r := &Resilient{
		remote:        remote,
		local:         local,
		logger:        logger,
		opTimeout:     cfg.OpTimeout,
		probeInterval: cfg.ProbeInterval,
		now:           time.Now,
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.opTimeout)
	defer cancel()
	if remote.Available(ctx) {
		r.state = remoteActive
		r.logger.Info("cache backend active", "backend", "remote")
	} else {
		r.state = localActive
		r.lastProbe = r.now()
		r.logger.Warn("remote cache unavailable at startup, using local fallback")
	}
	return r
}

// State reports which backend is currently active ("remote" or "local").
func (r *Resilient) State() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.String()
}

// Get returns the cached value for key, or a miss. Backend failures flip the
// active backend and the call is retried once on the other side; if both
// sides fail the result is a miss, never an error.
func (r *Resilient) Get(ctx context.Context, key string) ([]byte, bool) {
	r.maybeReprobe(ctx)
	primary, secondary, st := r.ordered()

	value, ok, err := r.get(ctx, primary, key)
	if err == nil {
		return value, ok
	}
	// A cancelled caller context says nothing about backend health.
	if ctx.Err() != nil {
		return nil, false
	}
	r.failPrimary(st, err)

	value, ok, err = r.get(ctx, secondary, key)
	if err == nil {
		if st == localActive {
			r.transition(remoteActive, slog.LevelInfo, "remote cache recovered")
		}
		return value, ok
	}
	r.logger.Error("cache unavailable on both backends, degrading to miss", "key", key, "error", err)
	return nil, false
}

// Set stores value under key with the given TTL. Caching is best-effort: a
// write failure on both backends is logged and swallowed.
func (r *Resilient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	r.maybeReprobe(ctx)
	primary, secondary, st := r.ordered()

	err := r.set(ctx, primary, key, value, ttl)
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		return
	}
	r.failPrimary(st, err)

	err = r.set(ctx, secondary, key, value, ttl)
	if err == nil {
		if st == localActive {
			r.transition(remoteActive, slog.LevelInfo, "remote cache recovered")
		}
		return
	}
	r.logger.Error("cache write failed on both backends", "key", key, "error", err)
}

// Close closes both backends.
func (r *Resilient) Close() error {
	errRemote := r.remote.Close()
	errLocal := r.local.Close()
	if errRemote != nil {
		return errRemote
	}
	return errLocal
}

func (r *Resilient) get(ctx context.Context, b Backend, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	return b.Get(ctx, key)
}

func (r *Resilient) set(ctx context.Context, b Backend, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	return b.Set(ctx, key, value, ttl)
}

// ordered returns the backends in attempt order for the current state.
func (r *Resilient) ordered() (primary, secondary Backend, st backendState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == remoteActive {
		return r.remote, r.local, remoteActive
	}
	return r.local, r.remote, localActive
}

// failPrimary records a failure of the primary backend for state st. Only a
// remote failure moves the state machine; a failing local fallback does not
// make the remote side active without evidence that it works.
func (r *Resilient) failPrimary(st backendState, err error) {
	if st == remoteActive {
		r.transition(localActive, slog.LevelWarn, "remote cache failure, switching to local fallback", "error", err)
	}
}

// transition flips the active backend if it is not already in the target
// state, logging exactly once per state change.
func (r *Resilient) transition(to backendState, level slog.Level, msg string, args ...any) {
	r.mu.Lock()
	if r.state == to {
		r.mu.Unlock()
		return
	}
	r.state = to
	if to == localActive {
		r.lastProbe = r.now()
	}
	r.mu.Unlock()
	r.logger.Log(context.Background(), level, msg, args...)
}

// maybeReprobe checks the remote backend once per probe interval while the
// local fallback is active, switching back when it answers again.
func (r *Resilient) maybeReprobe(ctx context.Context) {
	r.mu.Lock()
	if r.state != localActive || r.now().Sub(r.lastProbe) < r.probeInterval {
		r.mu.Unlock()
		return
	}
	r.lastProbe = r.now()
	r.mu.Unlock()

	probeCtx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	if r.remote.Available(probeCtx) {
		r.transition(remoteActive, slog.LevelInfo, "remote cache recovered")
	}
}
