// Package cache provides the expiring key/value store the outbound client
// uses to avoid redundant calls to the trading backend: a generic in-memory
// TTL cache plus an optional Redis-backed tier behind the same interface.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

func (e entry[V]) expired(now time.Time) bool {
	return now.Sub(e.storedAt) > e.ttl
}

// Cache is an in-memory TTL store. Entries expire lazily on read and are
// collected by Sweep; EnforceBound evicts oldest-first when the entry count
// exceeds maxEntries. None of its operations can fail.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]entry[V]
	defaultTTL time.Duration
	maxEntries int
	sweepEvery time.Duration
	now        func() time.Time
}

// New creates a cache with a default TTL, a maximum entry count (0 disables
// the bound) and a sweep interval for StartJanitor.
func New[V any](defaultTTL time.Duration, maxEntries int, sweepEvery time.Duration) *Cache[V] {
	return &Cache[V]{
		entries:    make(map[string]entry[V]),
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
		sweepEvery: sweepEvery,
		now:        time.Now,
	}
}

// Set stores value under key. A ttl <= 0 uses the cache default. Overwrites
// refresh the entry's timestamp, which also refreshes its eviction age.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, storedAt: c.now(), ttl: ttl}
	c.mu.Unlock()
}

// Get returns the value for key. A key that was never set and a key whose TTL
// has elapsed both report absent; the expired entry is removed on the spot so
// a lookup never returns stale data even before the sweep runs.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if ent.expired(c.now()) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return ent.value, true
}

// Invalidate removes one entry.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidatePrefix removes every entry whose key starts with prefix. Used on
// writes: a POST to /api/orders drops every cached read under /api/orders.
func (c *Cache[V]) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// InvalidateAll clears the cache. Reserved for writes whose affected key set
// cannot be determined cheaply.
func (c *Cache[V]) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

// Len returns the number of physically present entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes every entry whose TTL has elapsed. Bounds memory for keys
// that are set once and never read again.
func (c *Cache[V]) Sweep() {
	now := c.now()

	c.mu.Lock()
	for key, ent := range c.entries {
		if ent.expired(now) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// EnforceBound evicts oldest-timestamp-first until the entry count is back at
// maxEntries. Insertion/refresh time approximates LRU here, which is fine for
// a best-effort optimization.
func (c *Cache[V]) EnforceBound() {
	if c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.entries) > c.maxEntries {
		var oldestKey string
		var oldestAt time.Time
		first := true
		for key, ent := range c.entries {
			if first || ent.storedAt.Before(oldestAt) {
				oldestKey = key
				oldestAt = ent.storedAt
				first = false
			}
		}
		delete(c.entries, oldestKey)
	}
}

// StartJanitor sweeps expired entries and enforces the size bound on the
// configured interval until ctx is done.
func (c *Cache[V]) StartJanitor(ctx context.Context) {
	if c.sweepEvery <= 0 {
		return
	}

	t := time.NewTicker(c.sweepEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.Sweep()
				c.EnforceBound()
			}
		}
	}()
}
