// Package file implements the local fallback cache backend as a single
// human-inspectable JSON file mapping key -> {value, created_at, ttl}.
// Expiration is lazy: entries are checked against their timestamp on read
// and pruned on the next write. Writes replace the file atomically
// (temp file + rename) so a crash mid-write cannot corrupt it.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const storeFileName = "answers.json"

type record struct {
	Value      string    `json:"value"`
	CreatedAt  time.Time `json:"created_at"`
	TTLSeconds int64     `json:"ttl_seconds"`
}

func (r record) expired(now time.Time) bool {
	return now.Sub(r.CreatedAt) > time.Duration(r.TTLSeconds)*time.Second
}

// Backend stores cache entries in one JSON file under a directory.
type Backend struct {
	dir    string
	path   string
	logger *slog.Logger

	mu  sync.Mutex
	now func() time.Time
}

// New creates a file backend rooted at dir. The directory is created on
// first use, not here.
func New(dir string, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		dir:    dir,
		path:   filepath.Join(dir, storeFileName),
		logger: logger,
		now:    time.Now,
	}
}

// Get returns the value stored under key, enforcing lazy expiry: an entry
// older than its TTL is never returned as a hit. A corrupted store file is
// treated as empty, not as an error.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.load()
	if err != nil {
		return nil, false, err
	}
	rec, ok := entries[key]
	if !ok || rec.expired(b.now()) {
		return nil, false, nil
	}
	return []byte(rec.Value), true, nil
}

// Set stores value under key with the given TTL, pruning expired entries
// and replacing the store file atomically.
func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("file cache: ttl must be positive, got %s", ttl)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.load()
	if err != nil {
		return err
	}
	now := b.now()
	for k, rec := range entries {
		if rec.expired(now) {
			delete(entries, k)
		}
	}
	entries[key] = record{
		Value:      string(value),
		CreatedAt:  now,
		TTLSeconds: int64(ttl / time.Second),
	}
	return b.save(entries)
}

// Available reports whether the cache directory exists or can be created.
func (b *Backend) Available(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	return os.MkdirAll(b.dir, 0o755) == nil
}

// Close is a no-op; the backend holds no open handles between calls.
func (b *Backend) Close() error { return nil }

// load reads the store file. A missing file is an empty store; an
// unparseable file is logged and treated as empty so the next write heals it.
func (b *Backend) load() (map[string]record, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]record{}, nil
		}
		return nil, fmt.Errorf("file cache: read %s: %w", b.path, err)
	}
	var entries map[string]record
	if err := json.Unmarshal(data, &entries); err != nil {
		b.logger.Warn("corrupted cache store file, treating as empty", "path", b.path, "error", err)
		return map[string]record{}, nil
	}
	if entries == nil {
		entries = map[string]record{}
	}
	return entries, nil
}

// save writes the store file via a temp file and rename.
func (b *Backend) save(entries map[string]record) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("file cache: create dir %s: %w", b.dir, err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("file cache: marshal store: %w", err)
	}
	tmp, err := os.CreateTemp(b.dir, storeFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("file cache: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("file cache: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("file cache: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("file cache: replace store file: %w", err)
	}
	return nil
}
