// Package ratelimit gatekeeps inbound requests per caller identity using a
// sliding window: admission is decided by counting timestamps in a trailing
// interval evaluated lazily at call time, not a fixed-interval bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Admitter decides whether a caller may proceed. Implementations never return
// an error; a rejected caller is translated into a rate-limit error by the
// middleware, not here.
type Admitter interface {
	Admit(ctx context.Context, identity string) bool
}

// Limiter is the in-memory sliding-window limiter. One table per gateway
// instance; no coordination across instances.
type Limiter struct {
	mu      sync.Mutex
	entries map[string][]time.Time
	window  time.Duration
	max     int
	now     func() time.Time
}

// New creates a limiter allowing max requests per identity within window.
func New(window time.Duration, max int) *Limiter {
	return &Limiter{
		entries: make(map[string][]time.Time),
		window:  window,
		max:     max,
		now:     time.Now,
	}
}

// Admit reports whether a request from identity is allowed right now.
// Rejected attempts are not recorded, so a flooding caller does not push its
// own window forward. The prune/check/append sequence runs under the table
// lock so concurrent calls for one identity serialize.
func (l *Limiter) Admit(_ context.Context, identity string) bool {
	if l.max <= 0 {
		return false
	}

	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	stamps := l.entries[identity]

	// Drop everything that has slid out of the window.
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.max {
		l.entries[identity] = kept
		return false
	}

	l.entries[identity] = append(kept, now)
	return true
}

// Prune removes identities whose windows have fully elapsed. Admit already
// prunes the identity it touches; this bounds memory for identities that
// simply stop sending traffic.
func (l *Limiter) Prune() {
	cutoff := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	for identity, stamps := range l.entries {
		kept := stamps[:0]
		for _, ts := range stamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(l.entries, identity)
		} else {
			l.entries[identity] = kept
		}
	}
}

// Len returns the number of tracked identities.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// StartJanitor prunes idle identities on a fixed interval until ctx is done.
func (l *Limiter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Prune()
			}
		}
	}()
}
