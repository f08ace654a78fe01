package middleware

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tickerdesk/gateway/pkg/requestid"
	"github.com/tickerdesk/gateway/pkg/storage"
)

// AuditLog persists one RequestLog per handled request into the configured
// store. Persistence runs async so a slow store never adds latency to the
// response path.
func AuditLog(store storage.Store, log *zap.Logger) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			entry := storage.RequestLog{
				ID:         requestid.FromContext(r.Context()),
				Timestamp:  start,
				Method:     r.Method,
				Path:       r.URL.Path,
				RemoteAddr: r.RemoteAddr,
				UserAgent:  r.UserAgent(),
				StatusCode: rec.status,
				Duration:   time.Since(start),
			}

			go func(logEntry storage.RequestLog) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				if err := store.SaveRequestLog(ctx, &logEntry); err != nil {
					log.Warn("failed to persist request log",
						zap.String("id", logEntry.ID),
						zap.Error(err))
				}
			}(entry)
		})
	}
}
