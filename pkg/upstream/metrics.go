package upstream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_cache_hits_total",
		Help: "Number of reads served from the response cache",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_cache_misses_total",
		Help: "Number of reads that required an upstream fetch",
	})
	cacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_cache_invalidations_total",
		Help: "Number of write-triggered cache invalidations",
	})
	upstreamRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_upstream_retries_total",
		Help: "Number of retried upstream attempts after transient failures",
	})
	upstreamLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_upstream_latency_seconds",
		Help:    "Time spent per upstream attempt",
		Buckets: prometheus.DefBuckets,
	})
)
