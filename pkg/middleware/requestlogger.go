package middleware

import (
	"log/slog"
	"net/http"

	"github.com/3Health-View/backend/pkg/logger"
)

// RequestLogger builds a request-scoped logger enriched with correlation_id,
// email, trace_id and span_id, and stores it in context via logger.NewContext.
//
// Mount it after RequestLogging and Tracing. Routes behind Auth should mount
// it again inside the authenticated group so the email is picked up.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
