package storage

import (
	"context"
	"time"
)

// Store defines the interface for persisting request logs.
type Store interface {
	SaveRequestLog(ctx context.Context, log *RequestLog) error
	GetRequestLog(ctx context.Context, id string) (*RequestLog, error)
	ListRequestLogs(ctx context.Context, filters LogFilters) ([]*RequestLog, error)

	// Analytics
	GetUsageStats(ctx context.Context, from, to time.Time) (*UsageStats, error)

	// Health check
	Ping(ctx context.Context) error
}

// LogFilters for querying request logs.
type LogFilters struct {
	From       time.Time
	To         time.Time
	Path       string
	StatusCode int
	Limit      int
	Offset     int
}

// UsageStats aggregated traffic statistics.
type UsageStats struct {
	TotalRequests int64            `json:"total_requests"`
	ByStatusCode  map[int]int64    `json:"by_status_code"`
	ByPath        map[string]int64 `json:"by_path"`
	AvgDuration   time.Duration    `json:"avg_duration"`
}
