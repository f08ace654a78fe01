package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis with a time-series index.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration // how long to keep logs
}

// NewRedisStore creates a new Redis-backed storage.
func NewRedisStore(rdb *redis.Client, logRetention time.Duration) *RedisStore {
	if logRetention == 0 {
		logRetention = 30 * 24 * time.Hour // Default 30 days
	}
	return &RedisStore{
		rdb: rdb,
		ttl: logRetention,
	}
}

// SaveRequestLog stores a request log in Redis.
func (s *RedisStore) SaveRequestLog(ctx context.Context, log *RequestLog) error {
	// Store full log by ID
	key := fmt.Sprintf("log:%s", log.ID)
	data, err := json.Marshal(log)
	if err != nil {
		return err
	}

	if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return err
	}

	// Add to time-series index
	timestamp := float64(log.Timestamp.Unix())
	cutoff := fmt.Sprintf("%f", float64(time.Now().Add(-s.ttl).Unix()))

	// Global timeline
	timelineKey := "logs:timeline"
	s.rdb.ZAdd(ctx, timelineKey, redis.Z{
		Score:  timestamp,
		Member: log.ID,
	})
	s.rdb.ZRemRangeByScore(ctx, timelineKey, "-inf", cutoff)
	s.rdb.Expire(ctx, timelineKey, s.ttl)

	// Per-path timeline
	if log.Path != "" {
		pathTimeline := fmt.Sprintf("logs:path:%s", log.Path)
		s.rdb.ZAdd(ctx, pathTimeline, redis.Z{
			Score:  timestamp,
			Member: log.ID,
		})
		s.rdb.ZRemRangeByScore(ctx, pathTimeline, "-inf", cutoff)
		s.rdb.Expire(ctx, pathTimeline, s.ttl)
	}

	return nil
}

// GetRequestLog retrieves a single log by ID.
func (s *RedisStore) GetRequestLog(ctx context.Context, id string) (*RequestLog, error) {
	key := fmt.Sprintf("log:%s", id)
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var log RequestLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, err
	}

	return &log, nil
}

// ListRequestLogs queries logs with filters.
func (s *RedisStore) ListRequestLogs(ctx context.Context, filters LogFilters) ([]*RequestLog, error) {
	// Determine which index to use
	indexKey := "logs:timeline"
	if filters.Path != "" {
		indexKey = fmt.Sprintf("logs:path:%s", filters.Path)
	}

	// Query by time range
	minScore := float64(filters.From.Unix())
	maxScore := float64(filters.To.Unix())
	if filters.To.IsZero() {
		maxScore = float64(time.Now().Unix())
	}

	limit := filters.Limit
	if limit == 0 {
		limit = 100 // Default limit
	}

	ids, err := s.rdb.ZRevRangeByScore(ctx, indexKey, &redis.ZRangeBy{
		Min:    fmt.Sprintf("%f", minScore),
		Max:    fmt.Sprintf("%f", maxScore),
		Offset: int64(filters.Offset),
		Count:  int64(limit),
	}).Result()

	if err != nil {
		return nil, err
	}

	// Fetch full logs
	logs := make([]*RequestLog, 0, len(ids))
	for _, id := range ids {
		log, err := s.GetRequestLog(ctx, id)
		if err == nil {
			// Apply additional filters
			if filters.StatusCode != 0 && log.StatusCode != filters.StatusCode {
				continue
			}
			logs = append(logs, log)
		}
	}

	return logs, nil
}

// GetUsageStats calculates traffic statistics over a time range.
func (s *RedisStore) GetUsageStats(ctx context.Context, from, to time.Time) (*UsageStats, error) {
	logs, err := s.ListRequestLogs(ctx, LogFilters{
		From:  from,
		To:    to,
		Limit: 10000, // Get all logs in range
	})
	if err != nil {
		return nil, err
	}

	stats := &UsageStats{
		ByStatusCode: make(map[int]int64),
		ByPath:       make(map[string]int64),
	}

	var totalDuration time.Duration
	for _, log := range logs {
		stats.TotalRequests++
		stats.ByStatusCode[log.StatusCode]++
		stats.ByPath[log.Path]++
		totalDuration += log.Duration
	}

	if stats.TotalRequests > 0 {
		stats.AvgDuration = totalDuration / time.Duration(stats.TotalRequests)
	}

	return stats, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
