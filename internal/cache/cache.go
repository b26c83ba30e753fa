// Package cache keeps manifest and annotation documents in memory so repeated
// lookups of a product do not re-read its container.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
)

// Store holds documents keyed by product location and entry name.
type Store interface {
	// Get returns a cached document or ErrNotFound.
	Get(location, entry string) ([]byte, error)

	// Set caches a document.
	Set(location, entry string, doc []byte) error

	// Close releases the store.
	Close() error
}

// ErrNotFound is returned by Get for documents that are not cached.
var ErrNotFound = errors.New("document not cached")

// Config sizes a MemoryStore.
type Config struct {
	// LifeWindow is how long a document stays cached.
	LifeWindow time.Duration
	// CleanWindow is how often expired documents are evicted.
	CleanWindow time.Duration
	// MaxSizeMB caps the memory used by the store. Zero is unlimited.
	MaxSizeMB int
}

// MemoryStore implements Store on bigcache.
type MemoryStore struct {
	mu     sync.Mutex
	cache  *bigcache.BigCache
	logger *slog.Logger
	closed bool
}

// NewMemoryStore creates a new in-memory document store.
func NewMemoryStore(ctx context.Context, cfg Config) (*MemoryStore, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = 10 * time.Minute
	}

	bc := bigcache.DefaultConfig(life)
	bc.CleanWindow = cfg.CleanWindow
	if bc.CleanWindow <= 0 {
		bc.CleanWindow = life / 2
	}
	bc.HardMaxCacheSize = cfg.MaxSizeMB
	bc.MaxEntrySize = 1 << 20 // annotations are a few hundred KB to a few MB
	bc.Shards = 64
	bc.MaxEntriesInWindow = 1024
	bc.Verbose = false

	c, err := bigcache.New(ctx, bc)
	if err != nil {
		return nil, fmt.Errorf("failed to create document cache: %w", err)
	}
	return &MemoryStore{cache: c, logger: slog.Default()}, nil
}

// WithLogger sets a custom logger for the store
func (s *MemoryStore) WithLogger(logger *slog.Logger) *MemoryStore {
	s.logger = logger
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(location, entry string) ([]byte, error) {
	doc, err := s.cache.Get(key(location, entry))
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached %s: %w", entry, err)
	}
	return doc, nil
}

// Set implements Store.
func (s *MemoryStore) Set(location, entry string, doc []byte) error {
	if err := s.cache.Set(key(location, entry), doc); err != nil {
		s.logger.Warn("failed to cache document",
			slog.String("location", location),
			slog.String("entry", entry),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to cache %s: %w", entry, err)
	}
	return nil
}

// Stats returns hit and miss counts.
func (s *MemoryStore) Stats() (hits, misses int64) {
	st := s.cache.Stats()
	return st.Hits, st.Misses
}

// Len returns the number of cached documents.
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}

// Close implements Store. Closing twice is a no-op.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.cache.Close()
}

// Nop caches nothing.
type Nop struct{}

// Get implements Store.
func (Nop) Get(string, string) ([]byte, error) { return nil, ErrNotFound }

// Set implements Store.
func (Nop) Set(string, string, []byte) error { return nil }

// Close implements Store.
func (Nop) Close() error { return nil }

func key(location, entry string) string {
	return location + "\x00" + entry
}
