package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisKeyPrefix namespaces response-cache keys so invalidation scans never
// touch request logs or limiter counters living in the same Redis.
const redisKeyPrefix = "resp:"

// Redis is the shared response-cache tier, selected by config so multiple
// gateway instances can serve each other's cached reads. Every operation is
// best-effort: Redis being down degrades to a miss, never to an error.
type Redis struct {
	rdb *redis.Client
	log *zap.Logger
}

// NewRedis connects to the Redis server and verifies the connection.
func NewRedis(addr, password string, db int, log *zap.Logger) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{rdb: rdb, log: log}, nil
}

// Client exposes the underlying connection for components that share it
// (distributed rate limiter, request-log store).
func (r *Redis) Client() *redis.Client { return r.rdb }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	body, err := r.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("cache redis get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return body, true
}

func (r *Redis) Set(ctx context.Context, key string, body []byte, ttl time.Duration) {
	if err := r.rdb.Set(ctx, redisKeyPrefix+key, body, ttl).Err(); err != nil {
		r.log.Warn("cache redis set failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *Redis) Invalidate(ctx context.Context, key string) {
	if err := r.rdb.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		r.log.Warn("cache redis del failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *Redis) InvalidatePrefix(ctx context.Context, prefix string) {
	r.deleteByPattern(ctx, redisKeyPrefix+prefix+"*")
}

func (r *Redis) InvalidateAll(ctx context.Context) {
	r.deleteByPattern(ctx, redisKeyPrefix+"*")
}

func (r *Redis) deleteByPattern(ctx context.Context, pattern string) {
	iter := r.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := r.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			r.log.Warn("cache redis del failed", zap.String("key", iter.Val()), zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		r.log.Warn("cache redis scan failed", zap.String("pattern", pattern), zap.Error(err))
	}
}
