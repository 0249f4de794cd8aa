package middleware

import (
	"net/http"
)

// CacheControl sets the Cache-Control header on every response. Session and
// health data responses use "no-store" so intermediaries never keep them.
func CacheControl(directive string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", directive)
			next.ServeHTTP(w, r)
		})
	}
}
