package ratelimit

import (
	"context"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Distributed enforces the same window/max contract across multiple gateway
// instances by keeping the counters in Redis. Selected by config when Redis
// is enabled; the in-memory Limiter is the default.
type Distributed struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	log     *zap.Logger
}

// NewDistributed creates a Redis-backed limiter allowing max requests per
// identity within window.
func NewDistributed(rdb *redis.Client, window time.Duration, max int, log *zap.Logger) *Distributed {
	return &Distributed{
		limiter: redis_rate.NewLimiter(rdb),
		limit: redis_rate.Limit{
			Rate:   max,
			Burst:  max,
			Period: window,
		},
		log: log,
	}
}

// Admit reports whether a request from identity is allowed right now.
// Redis being unreachable fails open: the limiter is protection, not a
// correctness gate, and a cache outage must not take down the whole edge.
func (d *Distributed) Admit(ctx context.Context, identity string) bool {
	res, err := d.limiter.Allow(ctx, "ratelimit:"+identity, d.limit)
	if err != nil {
		d.log.Warn("rate limiter redis unavailable, admitting",
			zap.String("identity", identity),
			zap.Error(err))
		return true
	}
	return res.Allowed > 0
}
