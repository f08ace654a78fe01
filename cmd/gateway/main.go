package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tickerdesk/gateway/pkg/api"
	"github.com/tickerdesk/gateway/pkg/cache"
	"github.com/tickerdesk/gateway/pkg/config"
	"github.com/tickerdesk/gateway/pkg/middleware"
	"github.com/tickerdesk/gateway/pkg/ratelimit"
	"github.com/tickerdesk/gateway/pkg/requestid"
	"github.com/tickerdesk/gateway/pkg/storage"
	"github.com/tickerdesk/gateway/pkg/upstream"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// 1. Load Config with hot reload
	cfgStore, err := config.LoadAndWatch()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	cfg := cfgStore.Get()
	if cfg == nil {
		logger.Fatal("config could not be read")
	}

	ctx := context.Background()

	// 2. Initialize Redis (if enabled)
	var redisCache *cache.Redis
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedis(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("could not connect to redis", zap.Error(err))
		}
		logger.Info("connected to redis", zap.String("address", cfg.Redis.Address))
	}

	// 3. Response cache: shared Redis tier when available, otherwise one
	// in-memory cache per instance with its own janitor.
	var responseCache cache.ResponseCache
	if redisCache != nil {
		responseCache = redisCache
	} else {
		local := cache.NewLocal(
			time.Duration(cfg.Cache.DefaultTTLMs)*time.Millisecond,
			cfg.Cache.MaxEntries,
			time.Duration(cfg.Cache.SweepIntervalMs)*time.Millisecond,
		)
		local.StartJanitor(ctx)
		responseCache = local
	}

	// 4. Outbound client against the trading backend
	client, err := upstream.New(upstream.Config{
		BaseURL:    cfg.Upstream.BaseURL,
		Timeout:    time.Duration(cfg.Upstream.TimeoutMs) * time.Millisecond,
		MaxRetries: cfg.Upstream.MaxRetries,
		BaseDelay:  time.Duration(cfg.Upstream.BaseDelayMs) * time.Millisecond,
		DefaultTTL: time.Duration(cfg.Cache.DefaultTTLMs) * time.Millisecond,
		RPS:        cfg.Upstream.RPS,
		Burst:      cfg.Upstream.Burst,
	}, responseCache, logger)
	if err != nil {
		logger.Fatal("failed to create upstream client", zap.Error(err))
	}
	logger.Info("upstream client ready", zap.String("target", cfg.Upstream.BaseURL))

	// 5. Rate limiter (distributed if Redis is available)
	window := time.Duration(cfg.RateLimit.WindowMs) * time.Millisecond
	var admitter ratelimit.Admitter
	if redisCache != nil {
		admitter = ratelimit.NewDistributed(redisCache.Client(), window, cfg.RateLimit.MaxRequests, logger)
	} else {
		local := ratelimit.New(window, cfg.RateLimit.MaxRequests)
		local.StartJanitor(ctx, window)
		admitter = local
	}

	// 6. Storage for the request audit trail (requires Redis)
	var store storage.Store
	if cfg.Logging.Enabled && redisCache != nil {
		retentionDays := cfg.Logging.RetentionDays
		if retentionDays == 0 {
			retentionDays = 30
		}
		store = storage.NewRedisStore(redisCache.Client(), time.Duration(retentionDays)*24*time.Hour)
		logger.Info("request audit logging enabled", zap.Int("retention_days", retentionDays))
	} else if cfg.Logging.Enabled {
		logger.Warn("request audit logging requires redis, disabled")
	}

	// 7. Router and middleware (order matters: the correlation id must exist
	// before anything logs or fails)
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recover(logger))

	// Metrics and health stay outside the rate limiter so scrapes and probes
	// never count against a caller's window.
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuditLog(store, logger))
		if cfg.RateLimit.Enabled {
			r.Use(middleware.RateLimit(admitter, logger))
			logger.Info("rate limiting enabled",
				zap.Int("max_requests", cfg.RateLimit.MaxRequests),
				zap.Duration("window", window))
		}

		// Dashboard routes
		api.NewHandler(client, logger).RegisterRoutes(r)

		// Admin API
		if store != nil && cfg.Admin.Key != "" {
			api.NewAdminAPI(store, cfg.Admin.Key, logger).RegisterRoutes(r)
			logger.Info("admin API enabled at /admin/*")
		}
	})

	// 8. Start Server
	logger.Info("gateway listening", zap.String("port", cfg.Server.Port))
	if err := http.ListenAndServe(cfg.Server.Port, r); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
