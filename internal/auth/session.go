package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/3Health-View/backend/internal/domain"
	apperrors "github.com/3Health-View/backend/pkg/errors"
	"github.com/3Health-View/backend/pkg/middleware"
)

// SessionClaims are the JWT claims of a session token. The Oura credentials
// ride along so the data endpoints can call the provider without a user lookup.
type SessionClaims struct {
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	OuraToken   string `json:"oura_token"`
	OuraRefresh string `json:"oura_refresh"`
	jwt.RegisteredClaims
}

// SessionManager issues and validates HS256 session tokens.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager creates a session manager signing with secret. Tokens
// expire ttl after issue.
func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a session token for the user's current profile and Oura tokens.
func (m *SessionManager) Issue(u *domain.User) (string, error) {
	now := m.now().UTC().Truncate(time.Second)
	claims := &SessionClaims{
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		OuraToken:   u.OuraToken,
		OuraRefresh: u.OuraRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}

	return signed, nil
}

// Validate parses a session token. Expired tokens return an error wrapping
// apperrors.ErrTokenExpired.
func (m *SessionManager) Validate(tokenString string) (*middleware.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("parse session token: %w: %w", apperrors.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("parse session token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Email == "" {
		return nil, fmt.Errorf("invalid session token claims")
	}

	return &middleware.Claims{
		Email:       claims.Email,
		FirstName:   claims.FirstName,
		LastName:    claims.LastName,
		OuraToken:   claims.OuraToken,
		OuraRefresh: claims.OuraRefresh,
	}, nil
}
