package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/3Health-View/backend/pkg/errors"
	"github.com/3Health-View/backend/pkg/httputil"
	"github.com/3Health-View/backend/pkg/logger"
)

type contextKeyType string

const (
	claimsKey contextKeyType = "session_claims"
	tokenKey  contextKeyType = "session_token"
)

// Claims is the identity carried by a validated session token, including the
// Oura credentials the data endpoints call the provider with.
type Claims struct {
	Email       string
	FirstName   string
	LastName    string
	OuraToken   string
	OuraRefresh string
}

// TokenValidator validates a bearer token and returns its claims. An error
// wrapping apperrors.ErrTokenExpired is reported as "Token has expired".
type TokenValidator func(token string) (*Claims, error)

// Auth validates the bearer session token and injects its claims and the raw
// token into the request context.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, apperrors.Unauthorized("missing authorization header"))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				writeAuthError(w, apperrors.Unauthorized("invalid authorization header format"))
				return
			}

			claims, err := validate(parts[1])
			if err != nil {
				if errors.Is(err, apperrors.ErrTokenExpired) {
					writeAuthError(w, apperrors.TokenExpired())
					return
				}
				writeAuthError(w, apperrors.Unauthorized("invalid session token"))
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, tokenKey, parts[1])
			ctx = logger.WithEmail(ctx, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the session claims set by Auth, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	if c, ok := ctx.Value(claimsKey).(*Claims); ok {
		return c
	}
	return nil
}

// TokenFromContext returns the raw bearer token set by Auth.
func TokenFromContext(ctx context.Context) string {
	if t, ok := ctx.Value(tokenKey).(string); ok {
		return t
	}
	return ""
}

// EmailFromContext returns the authenticated email, or "".
func EmailFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.Email
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, err *apperrors.AppError) {
	httputil.WriteJSON(w, err.Status, httputil.Response{
		Message: err.Message,
		Error:   &httputil.ErrorResponse{Code: err.Code, Message: err.Message},
	})
}
