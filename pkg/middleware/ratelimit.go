package middleware

import (
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/tickerdesk/gateway/pkg/gwerror"
	"github.com/tickerdesk/gateway/pkg/ratelimit"
	"github.com/tickerdesk/gateway/pkg/requestid"
)

// RateLimit admits or rejects each request before it reaches any handler.
// A rejected request is answered with the RATE_LIMIT_EXCEEDED error and never
// touches the backend.
func RateLimit(admitter ratelimit.Admitter, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := clientIdentity(r)

			if !admitter.Admit(r.Context(), identity) {
				rateLimitRejections.Inc()
				log.Warn("rate limit exceeded",
					zap.String("identity", identity),
					zap.String("path", r.URL.Path),
					zap.String("request_id", requestid.FromContext(r.Context())))
				gwerror.Respond(w, r, gwerror.New(gwerror.CodeRateLimited, "too many requests"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIdentity keys the limiter by client address, ignoring the ephemeral
// port so one host's connections share a window.
func clientIdentity(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
