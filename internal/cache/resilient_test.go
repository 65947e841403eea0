package cache

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu        sync.Mutex
	data      map[string][]byte
	failGet   bool
	failSet   bool
	reachable bool
	getCalls  int
	setCalls  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: map[string][]byte{}, reachable: true}
}

func (f *fakeBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.failGet {
		return nil, false, errors.New("connection refused")
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.failSet {
		return errors.New("connection refused")
	}
	f.data[key] = value
	return nil
}

func (f *fakeBackend) Available(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reachable
}

func (f *fakeBackend) Close() error { return nil }

func (f *fakeBackend) fail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGet = v
	f.failSet = v
	f.reachable = !v
}

func newTestResilient(t *testing.T, remote, local Backend) (*Resilient, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := NewResilient(remote, local, ResilientConfig{OpTimeout: time.Second, ProbeInterval: 30 * time.Second}, logger)
	return r, &buf
}

func TestResilientRoutesToRemoteWhenHealthy(t *testing.T) {
	remote := newFakeBackend()
	local := newFakeBackend()
	r, _ := newTestResilient(t, remote, local)
	ctx := context.Background()

	require.Equal(t, "remote", r.State())
	r.Set(ctx, "k", []byte("v"), time.Minute)
	value, ok := r.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), value)
	assert.Zero(t, local.setCalls)
	assert.Zero(t, local.getCalls)
}

func TestResilientFailsOverToLocal(t *testing.T) {
	remote := newFakeBackend()
	local := newFakeBackend()
	r, buf := newTestResilient(t, remote, local)
	ctx := context.Background()

	local.data["k"] = []byte("fallback")
	remote.fail(true)

	value, ok := r.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("fallback"), value)
	assert.Equal(t, "local", r.State())
	assert.Equal(t, 1, strings.Count(buf.String(), "switching to local fallback"))
}

func TestResilientLogsTransitionOnce(t *testing.T) {
	remote := newFakeBackend()
	local := newFakeBackend()
	r, buf := newTestResilient(t, remote, local)
	ctx := context.Background()

	remote.fail(true)
	for i := 0; i < 5; i++ {
		r.Get(ctx, "k")
		r.Set(ctx, "k", []byte("v"), time.Minute)
	}
	assert.Equal(t, "local", r.State())
	assert.Equal(t, 1, strings.Count(buf.String(), "switching to local fallback"))
}

func TestResilientWritesReachLocalAfterFailover(t *testing.T) {
	remote := newFakeBackend()
	local := newFakeBackend()
	r, _ := newTestResilient(t, remote, local)
	ctx := context.Background()

	remote.fail(true)
	r.Set(ctx, "k", []byte("v"), time.Minute)
	require.Equal(t, "local", r.State())

	value, ok := r.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), value)
	assert.Equal(t, []byte("v"), local.data["k"])
	_, inRemote := remote.data["k"]
	assert.False(t, inRemote)
}

func TestResilientRecoversViaSecondary(t *testing.T) {
	remote := newFakeBackend()
	local := newFakeBackend()
	r, buf := newTestResilient(t, remote, local)
	ctx := context.Background()

	remote.fail(true)
	r.Get(ctx, "k")
	require.Equal(t, "local", r.State())

	// Local dies, remote comes back. The retry against the remote side
	// must promote it again.
	remote.fail(false)
	remote.data["k"] = []byte("remote-value")
	local.fail(true)

	value, ok := r.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("remote-value"), value)
	assert.Equal(t, "remote", r.State())
	assert.Equal(t, 1, strings.Count(buf.String(), "remote cache recovered"))
}

func TestResilientReprobeAfterCooldown(t *testing.T) {
	remote := newFakeBackend()
	local := newFakeBackend()
	r, buf := newTestResilient(t, remote, local)
	ctx := context.Background()

	remote.fail(true)
	r.Get(ctx, "k")
	require.Equal(t, "local", r.State())

	remote.fail(false)

	// Within the cooldown nothing probes the remote side.
	r.Get(ctx, "k")
	assert.Equal(t, "local", r.State())

	current := time.Now()
	r.now = func() time.Time { return current.Add(time.Minute) }
	r.Get(ctx, "k")
	assert.Equal(t, "remote", r.State())
	assert.Equal(t, 1, strings.Count(buf.String(), "remote cache recovered"))
}

func TestResilientBothBackendsDown(t *testing.T) {
	remote := newFakeBackend()
	local := newFakeBackend()
	r, buf := newTestResilient(t, remote, local)
	ctx := context.Background()

	remote.fail(true)
	local.fail(true)

	value, ok := r.Get(ctx, "k")
	assert.False(t, ok)
	assert.Nil(t, value)
	// Writes are swallowed, not returned.
	r.Set(ctx, "k", []byte("v"), time.Minute)
	assert.Contains(t, buf.String(), "cache unavailable on both backends")
	assert.Contains(t, buf.String(), "cache write failed on both backends")
}

func TestResilientCallerCancellationDoesNotFlipState(t *testing.T) {
	remote := newFakeBackend()
	local := newFakeBackend()
	r, buf := newTestResilient(t, remote, local)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	value, ok := r.Get(ctx, "k")
	assert.False(t, ok)
	assert.Nil(t, value)
	r.Set(ctx, "k", []byte("v"), time.Minute)

	assert.Equal(t, "remote", r.State())
	assert.NotContains(t, buf.String(), "switching to local fallback")
	// The local side was never tried either.
	assert.Zero(t, local.getCalls)
	assert.Zero(t, local.setCalls)
}

func TestResilientStartsLocalWhenRemoteUnreachable(t *testing.T) {
	remote := newFakeBackend()
	remote.fail(true)
	local := newFakeBackend()
	r, buf := newTestResilient(t, remote, local)

	assert.Equal(t, "local", r.State())
	assert.Contains(t, buf.String(), "remote cache unavailable at startup")
}
