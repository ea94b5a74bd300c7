// Package cache provides the bounded TTL+LRU edge cache for routing
// results, plus the byte-oriented backing store contract that lets
// deployments swap in an external store.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// ErrMiss indicates the key is absent or its entry has expired.
var ErrMiss = errors.New("cache: miss")

// Store is the backing store contract. The router only depends on this,
// so the in-process cache and external stores are interchangeable.
type Store interface {
	// Get returns the stored bytes or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key if present.
	Delete(ctx context.Context, key string) error
}

// Config bounds the in-process cache.
type Config struct {
	// MaxItems is the maximum number of entries.
	MaxItems int

	// MaxBytes is the aggregate value-size budget.
	MaxBytes int64

	// DefaultTTL applies when Set is called with ttl <= 0.
	DefaultTTL time.Duration

	// SweepInterval is how often the background sweeper removes
	// expired entries.
	SweepInterval time.Duration
}

// DefaultConfig returns the default cache bounds.
func DefaultConfig() Config {
	return Config{
		MaxItems:      100,
		MaxBytes:      50 << 20,
		DefaultTTL:    5 * time.Minute,
		SweepInterval: 5 * time.Minute,
	}
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Items     int   `json:"items"`
	Bytes     int64 `json:"bytes"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

type entry struct {
	value     []byte
	expiresAt time.Time
	size      int64
}

// Cache is the in-process TTL+LRU store. Recency is tracked by the
// underlying LRU list; expiry is checked on read and by the sweeper.
// Safe for concurrent use by all in-flight routing calls.
type Cache struct {
	mu  sync.Mutex
	cfg Config
	lru *simplelru.LRU[string, *entry]

	bytes     int64
	hits      int64
	misses    int64
	evictions int64

	// countEvictions distinguishes budget evictions from expiry and
	// explicit deletes inside the shared evict callback.
	countEvictions bool
}

// New creates a Cache with the given bounds, falling back to defaults
// for zero values.
func New(cfg Config) *Cache {
	def := DefaultConfig()
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = def.MaxItems
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = def.DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}

	c := &Cache{cfg: cfg}
	lru, err := simplelru.NewLRU(cfg.MaxItems, c.onEvict)
	if err != nil {
		// Only reachable with a non-positive size, which is guarded above.
		panic(err)
	}
	c.lru = lru
	return c
}

func (c *Cache) onEvict(_ string, e *entry) {
	c.bytes -= e.size
	if c.countEvictions {
		c.evictions++
	}
}

// Get implements Store. A hit refreshes the entry's recency; an expired
// entry is removed and reported as a miss.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		return nil, ErrMiss
	}
	if time.Now().After(e.expiresAt) {
		c.lru.Remove(key)
		c.misses++
		return nil, ErrMiss
	}
	c.hits++
	return e.value, nil
}

// Set implements Store. Least-recently-used entries are evicted until
// both the item and byte budgets hold. Values larger than the whole byte
// budget are not stored.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	size := int64(len(value))
	if size > c.cfg.MaxBytes {
		return nil
	}
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Replace any existing entry so its size is not double counted.
	c.lru.Remove(key)

	e := &entry{value: value, expiresAt: time.Now().Add(ttl), size: size}
	c.countEvictions = true
	c.lru.Add(key, e)
	c.bytes += size
	for c.bytes > c.cfg.MaxBytes {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
	}
	c.countEvictions = false
	return nil
}

// Delete implements Store.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
	return nil
}

// Cleanup removes every expired entry and returns how many were removed.
// It bounds worst-case memory for keys that are never re-read.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for _, key := range c.lru.Keys() {
		if e, ok := c.lru.Peek(key); ok && now.After(e.expiresAt) {
			c.lru.Remove(key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Cleanup on the configured interval until ctx is
// canceled.
func (c *Cache) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Cleanup()
			}
		}
	}()
}

// Stats returns a point-in-time view of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Items:     c.lru.Len(),
		Bytes:     c.bytes,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
