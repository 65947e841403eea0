package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleAbsorbsBackendErrors(t *testing.T) {
	backend := newFakeBackend()
	s := NewSingle(backend, time.Second, nil)
	ctx := context.Background()

	s.Set(ctx, "k", []byte("v"), time.Minute)
	value, ok := s.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), value)

	backend.fail(true)
	_, ok = s.Get(ctx, "k")
	assert.False(t, ok)
	// A failing write is dropped without panicking or returning.
	s.Set(ctx, "k2", []byte("v2"), time.Minute)

	assert.Equal(t, "local", s.State())
}
