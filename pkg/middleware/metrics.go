package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_ratelimit_rejections_total",
		Help: "Number of requests rejected by the rate limiter",
	})
	panicsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_panics_recovered_total",
		Help: "Number of handler panics converted to internal errors",
	})
)
