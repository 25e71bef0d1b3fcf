package sample

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CacheKey identifies one memoized dataset.
type CacheKey struct {
	Seed    int64
	Rows    int
	Year    int
	Weights string
}

func keyFor(seed int64, opts Options) CacheKey {
	return CacheKey{
		Seed:    seed,
		Rows:    opts.Rows,
		Year:    opts.Year,
		Weights: fmt.Sprint(opts.weights()),
	}
}

type cacheEntry struct {
	tables    *Tables
	expiresAt time.Time
	lastUsed  time.Time
}

// Cache memoizes generated tables per seed and options. Each miss generates
// with a fresh source seeded from the key, so a cached result is identical
// to an uncached one.
//
// Entries expire ttl after they were generated. When maxEntries is reached
// the least recently used entry is dropped to make room. A zero ttl or
// maxEntries disables that bound.
type Cache struct {
	mu         sync.Mutex
	entries    map[CacheKey]*cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	hits       uint64
	misses     uint64
	evictions  uint64
}

// NewCache returns an empty cache bounded by ttl and maxEntries.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		entries:    make(map[CacheKey]*cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the tables for seed and opts, generating them on first use or
// after the previous entry expired.
func (c *Cache) Get(seed int64, opts Options) (*Tables, error) {
	key := keyFor(seed, opts)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.entries[key]; ok {
		if !c.expired(e, now) {
			e.lastUsed = now
			c.hits++
			return e.tables, nil
		}
		delete(c.entries, key)
		c.evictions++
	}

	t, err := Generate(NewRand(seed), opts)
	if err != nil {
		return nil, err
	}
	c.misses++

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	e := &cacheEntry{tables: t, lastUsed: now}
	if c.ttl > 0 {
		e.expiresAt = now.Add(c.ttl)
	}
	c.entries[key] = e
	return t, nil
}

func (c *Cache) expired(e *cacheEntry, now time.Time) bool {
	return c.ttl > 0 && now.After(e.expiresAt)
}

// evictLocked drops expired entries, then the least recently used ones until
// there is room for one more.
func (c *Cache) evictLocked(now time.Time) {
	c.removeExpiredLocked(now)
	for len(c.entries) >= c.maxEntries {
		var (
			oldest CacheKey
			at     time.Time
			found  bool
		)
		for k, e := range c.entries {
			if !found || e.lastUsed.Before(at) {
				oldest, at, found = k, e.lastUsed, true
			}
		}
		if !found {
			return
		}
		delete(c.entries, oldest)
		c.evictions++
	}
}

func (c *Cache) removeExpiredLocked(now time.Time) {
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
			c.evictions++
		}
	}
}

// StartCleanup periodically drops expired datasets until ctx is cancelled.
func (c *Cache) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				c.removeExpiredLocked(c.now())
				c.mu.Unlock()
			}
		}
	}()
}

// Invalidate drops every memoized dataset.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[CacheKey]*cacheEntry)
}

// CacheStats reports cache usage.
type CacheStats struct {
	Entries   int    `json:"entries"`
	Rows      int    `json:"rows"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// Stats returns a snapshot of cache usage.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses, Evictions: c.evictions}
	for _, e := range c.entries {
		s.Rows += len(e.tables.Appointments)
	}
	return s
}
