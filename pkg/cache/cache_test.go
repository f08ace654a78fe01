package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(defaultTTL time.Duration, maxEntries int) (*Cache[string], *fakeClock) {
	clock := newFakeClock()
	c := New[string](defaultTTL, maxEntries, time.Minute)
	c.now = clock.Now
	return c, clock
}

func TestSetThenGet(t *testing.T) {
	c, _ := newTestCache(time.Minute, 0)

	c.Set("k", "v", 0)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestGetMissingKey(t *testing.T) {
	c, _ := newTestCache(time.Minute, 0)

	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestGetHonorsTTLBoundary(t *testing.T) {
	c, clock := newTestCache(time.Minute, 0)

	c.Set("k", "v", 60*time.Second)

	clock.Advance(59999 * time.Millisecond)
	got, ok := c.Get("k")
	require.True(t, ok, "one ms before expiry the value is still served")
	assert.Equal(t, "v", got)

	clock.Advance(2 * time.Millisecond) // now at 60001ms
	_, ok = c.Get("k")
	assert.False(t, ok, "past the TTL the entry is logically absent")
}

func TestExpiredGetRemovesEntry(t *testing.T) {
	c, clock := newTestCache(time.Second, 0)

	c.Set("k", "v", 0)
	require.Equal(t, 1, c.Len())

	clock.Advance(2 * time.Second)
	_, ok := c.Get("k")
	require.False(t, ok)
	assert.Equal(t, 0, c.Len(), "lazy expiry removes the entry, not just hides it")
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	c, clock := newTestCache(time.Second, 0)

	c.Set("old", "v", time.Second)
	clock.Advance(500 * time.Millisecond)
	c.Set("fresh", "v", time.Minute)

	clock.Advance(600 * time.Millisecond)
	c.Sweep()

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("fresh")
	assert.True(t, ok)
}

func TestEnforceBoundEvictsOldestFirst(t *testing.T) {
	c, clock := newTestCache(time.Hour, 2)

	c.Set("first", "v", 0)
	clock.Advance(time.Second)
	c.Set("second", "v", 0)
	clock.Advance(time.Second)
	c.Set("third", "v", 0)

	c.EnforceBound()

	require.Equal(t, 2, c.Len())
	_, ok := c.Get("first")
	assert.False(t, ok, "the oldest entry is evicted")
	_, ok = c.Get("second")
	assert.True(t, ok)
	_, ok = c.Get("third")
	assert.True(t, ok)
}

func TestOverwriteRefreshesEvictionAge(t *testing.T) {
	c, clock := newTestCache(time.Hour, 2)

	c.Set("a", "v", 0)
	clock.Advance(time.Second)
	c.Set("b", "v", 0)
	clock.Advance(time.Second)
	c.Set("a", "v2", 0) // refresh: a is now the newest
	c.Set("c", "v", 0)

	c.EnforceBound()

	_, ok := c.Get("b")
	assert.False(t, ok, "b became the oldest after a was refreshed")
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "v2", got)
}

func TestInvalidate(t *testing.T) {
	c, _ := newTestCache(time.Minute, 0)

	c.Set("k", "v", 0)
	c.Invalidate("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestInvalidatePrefix(t *testing.T) {
	c, _ := newTestCache(time.Minute, 0)

	c.Set("/api/orders", "list", 0)
	c.Set("/api/orders/42", "one", 0)
	c.Set("/api/portfolio", "keep", 0)

	c.InvalidatePrefix("/api/orders")

	_, ok := c.Get("/api/orders")
	assert.False(t, ok)
	_, ok = c.Get("/api/orders/42")
	assert.False(t, ok)
	_, ok = c.Get("/api/portfolio")
	assert.True(t, ok)
}

func TestInvalidateAll(t *testing.T) {
	c, _ := newTestCache(time.Minute, 0)

	c.Set("a", "v", 0)
	c.Set("b", "v", 0)
	c.InvalidateAll()
	assert.Equal(t, 0, c.Len())
}

func TestLocalAdapterRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(time.Minute, 0, time.Minute)

	l.Set(ctx, "k", []byte(`{"v":1}`), 0)
	body, ok := l.Get(ctx, "k")
	require.True(t, ok)
	assert.JSONEq(t, `{"v":1}`, string(body))

	l.InvalidatePrefix(ctx, "k")
	_, ok = l.Get(ctx, "k")
	assert.False(t, ok)
}

func TestJanitorStopsOnContextCancel(t *testing.T) {
	c := New[string](time.Millisecond, 0, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	c.StartJanitor(ctx)

	c.Set("k", "v", time.Millisecond)
	assert.Eventually(t, func() bool { return c.Len() == 0 },
		200*time.Millisecond, 5*time.Millisecond, "janitor sweeps the expired entry")

	cancel()
}
