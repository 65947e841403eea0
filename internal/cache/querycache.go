package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"ragqa/internal/domain"
)

// QueryCache binds the cache layer to the question/answer lifecycle: lookup
// before retrieval and generation, population after. It owns the key policy
// and the default TTL; it holds no cache state of its own.
type QueryCache struct {
	store      Store
	deriver    *KeyDeriver
	defaultTTL time.Duration
	logger     *slog.Logger
}

// NewQueryCache creates a query cache over the given store.
func NewQueryCache(store Store, deriver *KeyDeriver, defaultTTL time.Duration, logger *slog.Logger) *QueryCache {
	if deriver == nil {
		deriver = NewKeyDeriver("")
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryCache{store: store, deriver: deriver, defaultTTL: defaultTTL, logger: logger}
}

// Lookup returns the cached answer for the query under the given snapshot.
// A corrupted entry is treated as a miss and will be overwritten by the next
// Store; it is never surfaced as an error.
func (q *QueryCache) Lookup(ctx context.Context, query string, snap KeySnapshot) (*domain.Answer, bool) {
	key := q.deriver.Derive(query, snap)
	data, ok := q.store.Get(ctx, key)
	if !ok {
		q.logger.Debug("answer cache miss", "key", key)
		return nil, false
	}
	var ans domain.Answer
	if err := json.Unmarshal(data, &ans); err != nil {
		q.logger.Warn("corrupted answer cache entry, treating as miss", "key", key, "error", err)
		return nil, false
	}
	q.logger.Debug("answer cache hit", "key", key)
	ans.Cached = true
	return &ans, true
}

// Store caches the answer for the query. A non-positive ttl selects the
// default. The write is advisory: failures are logged by the store layer and
// never returned to the asker.
func (q *QueryCache) Store(ctx context.Context, query string, snap KeySnapshot, ans *domain.Answer, ttl time.Duration) {
	if ans == nil {
		return
	}
	if ttl <= 0 {
		ttl = q.defaultTTL
	}
	entry := *ans
	entry.Cached = false
	data, err := json.Marshal(&entry)
	if err != nil {
		q.logger.Error("failed to serialize answer for caching", "error", err)
		return
	}
	q.store.Set(ctx, q.deriver.Derive(query, snap), data, ttl)
}
