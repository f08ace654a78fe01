package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/tickerdesk/gateway/pkg/gwerror"
	"github.com/tickerdesk/gateway/pkg/requestid"
)

// Recover converts handler panics into the catch-all internal error instead
// of letting net/http kill the connection. The panic value stays in the logs;
// the caller only ever sees the generic message.
func Recover(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					panicsRecovered.Inc()
					log.Error("handler panic",
						zap.Any("panic", v),
						zap.String("path", r.URL.Path),
						zap.String("request_id", requestid.FromContext(r.Context())),
						zap.Stack("stack"))
					gwerror.Respond(w, r, gwerror.New(gwerror.CodeInternal, "internal server error"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
