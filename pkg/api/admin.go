package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tickerdesk/gateway/pkg/gwerror"
	"github.com/tickerdesk/gateway/pkg/storage"
)

// AdminAPI provides endpoints for inspecting the gateway: the request audit
// trail and aggregated traffic stats.
type AdminAPI struct {
	store    storage.Store
	adminKey string // Simple admin authentication
	log      *zap.Logger
}

// NewAdminAPI creates a new admin API handler.
func NewAdminAPI(store storage.Store, adminKey string, log *zap.Logger) *AdminAPI {
	return &AdminAPI{
		store:    store,
		adminKey: adminKey,
		log:      log,
	}
}

// RegisterRoutes registers admin endpoints.
func (api *AdminAPI) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(api.authenticate)
		r.Get("/logs", api.handleLogs)
		r.Get("/stats", api.handleStats)
		r.Get("/health", api.handleHealth)
	})
}

// authenticate checks the admin key header.
func (api *AdminAPI) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Admin-Key") != api.adminKey {
			gwerror.Respond(w, r, gwerror.New(gwerror.CodeUnauthorized, "invalid admin key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleLogs lists request logs filtered by query parameters.
func (api *AdminAPI) handleLogs(w http.ResponseWriter, r *http.Request) {
	filters := storage.LogFilters{
		Path:       r.URL.Query().Get("path"),
		StatusCode: queryInt(r, "status"),
		Limit:      queryInt(r, "limit"),
		Offset:     queryInt(r, "offset"),
	}
	if from := queryInt(r, "from"); from > 0 {
		filters.From = time.Unix(int64(from), 0)
	}
	if to := queryInt(r, "to"); to > 0 {
		filters.To = time.Unix(int64(to), 0)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	logs, err := api.store.ListRequestLogs(ctx, filters)
	if err != nil {
		api.log.Warn("failed to list request logs", zap.Error(err))
		gwerror.Respond(w, r, gwerror.New(gwerror.CodeInternal, "failed to list request logs"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

// handleStats returns aggregated traffic statistics for a time range.
func (api *AdminAPI) handleStats(w http.ResponseWriter, r *http.Request) {
	to := time.Now()
	from := to.Add(-24 * time.Hour)
	if v := queryInt(r, "from"); v > 0 {
		from = time.Unix(int64(v), 0)
	}
	if v := queryInt(r, "to"); v > 0 {
		to = time.Unix(int64(v), 0)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := api.store.GetUsageStats(ctx, from, to)
	if err != nil {
		api.log.Warn("failed to aggregate usage stats", zap.Error(err))
		gwerror.Respond(w, r, gwerror.New(gwerror.CodeInternal, "failed to aggregate usage stats"))
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// handleHealth pings the backing store.
func (api *AdminAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := api.store.Ping(ctx); err != nil {
		gwerror.Respond(w, r, gwerror.New(gwerror.CodeUnavailable, "audit store unreachable"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
