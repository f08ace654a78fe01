package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Header is the header used to propagate the correlation id, both on the
// inbound response and on every outbound call made while handling the request.
const Header = "X-Request-ID"

// contextKey is a custom type to avoid context key collisions.
type contextKey string

const requestIDKey contextKey = "request_id"

// Middleware assigns a correlation id to each inbound request. An id supplied
// by the caller on X-Request-ID is honored; otherwise a new UUID is generated.
// The id is echoed on the response header and stored in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.New().String()
		}

		w.Header().Set(Header, id)

		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the correlation id for the current request, or "" when
// none was assigned (e.g. code running outside the request pipeline).
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID attaches a correlation id to a context. Used by tests and by
// background work that wants its log lines tied to the originating request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}
