package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/3Health-View/backend/pkg/httputil"
)

// Recovery recovers from panics and answers with the standard 500 envelope
// instead of crashing the server.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					l.ErrorContext(r.Context(), "panic recovered",
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
					)

					httputil.WriteJSON(w, http.StatusInternalServerError, httputil.Response{
						Message: "Error has occurred",
						Error: &httputil.ErrorResponse{
							Code:    "INTERNAL_ERROR",
							Message: "Error has occurred",
							Detail:  fmt.Sprint(rec),
						},
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
