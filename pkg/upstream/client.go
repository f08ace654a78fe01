// Package upstream wraps every call to the trading backend: cached reads,
// invalidating writes, and retry with exponential backoff for transient
// transport failures. All failures leave this package already classified.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tickerdesk/gateway/pkg/cache"
	"github.com/tickerdesk/gateway/pkg/gwerror"
	"github.com/tickerdesk/gateway/pkg/requestid"
)

// Config holds the client knobs. Values come from the config file; behavior
// lives here.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	DefaultTTL time.Duration
	// RPS caps outbound requests per second to the backend; <= 0 disables
	// the throttle.
	RPS   float64
	Burst int
}

// Client issues calls against one fixed backend base address.
type Client struct {
	baseURL    string
	http       *http.Client
	cache      cache.ResponseCache
	breaker    *gobreaker.CircuitBreaker
	throttle   *rate.Limiter
	log        *zap.Logger
	maxRetries int
	baseDelay  time.Duration
	defaultTTL time.Duration
}

// New creates a client for the given backend.
func New(cfg Config, rc cache.ResponseCache, log *zap.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream base URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("upstream base URL %q must include scheme and host", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	// Circuit breaker per backend host, same trip rule as the balancer used
	// for upstream targets.
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    fmt.Sprintf("upstream-%s", base.Host),
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})

	var throttle *rate.Limiter
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		throttle = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(base.String(), "/"),
		http:       &http.Client{Timeout: cfg.Timeout},
		cache:      rc,
		breaker:    cb,
		throttle:   throttle,
		log:        log,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

type callOptions struct {
	ttl time.Duration
}

// Option tweaks a single call.
type Option func(*callOptions)

// WithTTL overrides the cache TTL for one read. Fast-moving resources
// (quotes) cache shorter than the default.
func WithTTL(d time.Duration) Option {
	return func(o *callOptions) { o.ttl = d }
}

// Get fetches path, serving from the cache when possible. The path (including
// any query string) is the cache key; a miss performs the network call and
// populates the cache with the raw body.
func Get[T any](ctx context.Context, c *Client, path string, opts ...Option) (T, error) {
	var out T
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	if body, ok := c.cache.Get(ctx, path); ok {
		if err := json.Unmarshal(body, &out); err == nil {
			cacheHits.Inc()
			c.log.Debug("upstream cache hit",
				zap.String("path", path),
				zap.String("request_id", requestid.FromContext(ctx)))
			return out, nil
		}
		// Undecodable entry: drop it and fall through to the network.
		c.cache.Invalidate(ctx, path)
	}

	cacheMisses.Inc()
	body, attempts, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return out, err
	}

	ttl := o.ttl
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.cache.Set(ctx, path, body, ttl)

	c.log.Debug("upstream cache miss",
		zap.String("path", path),
		zap.Int("attempts", attempts),
		zap.String("request_id", requestid.FromContext(ctx)))

	return decode[T](body)
}

// Post issues a POST. Never served from cache; on success the resource prefix
// of path is invalidated so subsequent reads are not stale.
func Post[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	return write[T](ctx, c, http.MethodPost, path, body)
}

// Delete issues a DELETE with the same invalidation behavior as Post.
func Delete[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	return write[T](ctx, c, http.MethodDelete, path, body)
}

func write[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var out T

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return out, gwerror.New(gwerror.CodeInternal, "encoding request body")
		}
	}

	raw, attempts, err := c.do(ctx, method, path, payload)
	if err != nil {
		return out, err
	}

	prefix := ResourcePrefix(path)
	c.cache.InvalidatePrefix(ctx, prefix)
	cacheInvalidations.Inc()

	c.log.Debug("upstream cache invalidate",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("prefix", prefix),
		zap.Int("attempts", attempts),
		zap.String("request_id", requestid.FromContext(ctx)))

	return decode[T](raw)
}

// do performs one call with the retry loop. Only no-response failures
// (connection errors, timeouts) are retried; an HTTP response of any status
// is a definite answer from the backend. Returns the body, the number of
// attempts used, and a classified error.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	// Closing the inbound connection must not abort an in-flight backend
	// call; the client's own timeout bounds each attempt instead.
	ctx = context.WithoutCancel(ctx)

	maxAttempts := c.maxRetries + 1
	var lastErr error
	var lastTimeout bool

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			upstreamRetries.Inc()
			time.Sleep(c.baseDelay << (attempt - 2))
		}

		if c.throttle != nil {
			if err := c.throttle.Wait(ctx); err != nil {
				return nil, attempt, gwerror.New(gwerror.CodeTimeout, "throttled upstream call timed out")
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, attempt, gwerror.New(gwerror.CodeInternal, "building upstream request")
		}
		if len(body) > 0 {
			req.Header.Set("Content-Type", "application/json")
		}
		if id := requestid.FromContext(ctx); id != "" {
			req.Header.Set(requestid.Header, id)
		}

		start := time.Now()
		res, err := c.breaker.Execute(func() (any, error) {
			return c.http.Do(req)
		})
		upstreamLatency.Observe(time.Since(start).Seconds())

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				c.log.Warn("upstream circuit open",
					zap.String("method", method),
					zap.String("path", path),
					zap.String("request_id", requestid.FromContext(ctx)))
				return nil, attempt, gwerror.New(gwerror.CodeUnavailable, "upstream temporarily unavailable")
			}
			lastErr = err
			lastTimeout = isTimeout(err)
			continue
		}

		resp := res.(*http.Response)
		payload, readErr := readBody(resp)
		if readErr != nil {
			lastErr = readErr
			lastTimeout = isTimeout(readErr)
			continue
		}

		if resp.StatusCode >= 400 {
			c.log.Warn("upstream error response",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempts", attempt),
				zap.String("request_id", requestid.FromContext(ctx)))
			return nil, attempt, statusError(resp.StatusCode, payload)
		}

		return payload, attempt, nil
	}

	c.log.Warn("upstream unreachable",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("attempts", maxAttempts),
		zap.Error(lastErr),
		zap.String("request_id", requestid.FromContext(ctx)))

	if lastTimeout {
		return nil, maxAttempts, gwerror.New(gwerror.CodeTimeout,
			fmt.Sprintf("upstream %s %s timed out after %d attempts", method, path, maxAttempts))
	}
	return nil, maxAttempts, gwerror.New(gwerror.CodeGateway,
		fmt.Sprintf("upstream %s %s unreachable after %d attempts", method, path, maxAttempts))
}

// ResourcePrefix reduces a path to its first two segments, the invalidation
// unit for writes: DELETE /api/orders/42 drops everything under /api/orders.
func ResourcePrefix(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		trimmed = trimmed[:i]
	}
	parts := strings.SplitN(trimmed, "/", 3)
	if len(parts) >= 2 {
		return "/" + parts[0] + "/" + parts[1]
	}
	return "/" + parts[0]
}

func decode[T any](body []byte) (T, error) {
	var out T
	if len(body) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, gwerror.New(gwerror.CodeGateway, "invalid response from upstream service")
	}
	return out, nil
}

// statusError maps a definite backend answer onto the taxonomy. The body's
// own error message is surfaced when it has one.
func statusError(status int, body []byte) *gwerror.Error {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := fmt.Sprintf("upstream returned status %d", status)
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error != "" {
			msg = parsed.Error
		} else if parsed.Message != "" {
			msg = parsed.Message
		}
	}
	return gwerror.FromStatus(status, msg)
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
