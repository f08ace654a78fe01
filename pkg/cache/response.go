package cache

import (
	"context"
	"time"
)

// ResponseCache is the interface the outbound client consumes: raw response
// bodies keyed by request path. The context only matters for the Redis tier;
// the in-memory implementation ignores it.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, body []byte, ttl time.Duration)
	Invalidate(ctx context.Context, key string)
	InvalidatePrefix(ctx context.Context, prefix string)
	InvalidateAll(ctx context.Context)
}

// Local adapts the in-memory Cache to ResponseCache. This is the default
// tier: one independent cache per gateway instance.
type Local struct {
	inner *Cache[[]byte]
}

// NewLocal creates the in-memory response cache.
func NewLocal(defaultTTL time.Duration, maxEntries int, sweepEvery time.Duration) *Local {
	return &Local{inner: New[[]byte](defaultTTL, maxEntries, sweepEvery)}
}

func (l *Local) Get(_ context.Context, key string) ([]byte, bool) {
	return l.inner.Get(key)
}

func (l *Local) Set(_ context.Context, key string, body []byte, ttl time.Duration) {
	l.inner.Set(key, body, ttl)
}

func (l *Local) Invalidate(_ context.Context, key string) {
	l.inner.Invalidate(key)
}

func (l *Local) InvalidatePrefix(_ context.Context, prefix string) {
	l.inner.InvalidatePrefix(prefix)
}

func (l *Local) InvalidateAll(_ context.Context) {
	l.inner.InvalidateAll()
}

// Len reports the current entry count, for admin stats.
func (l *Local) Len() int { return l.inner.Len() }

// StartJanitor starts the background sweep/eviction loop.
func (l *Local) StartJanitor(ctx context.Context) { l.inner.StartJanitor(ctx) }
