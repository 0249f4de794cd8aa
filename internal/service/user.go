package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/3Health-View/backend/internal/auth"
	"github.com/3Health-View/backend/internal/domain"
	"github.com/3Health-View/backend/internal/event"
	"github.com/3Health-View/backend/internal/oura"
	"github.com/3Health-View/backend/internal/repository"
	apperrors "github.com/3Health-View/backend/pkg/errors"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// TokenExchanger forwards OAuth token requests to the provider.
type TokenExchanger interface {
	ExchangeCode(ctx context.Context, code, redirectURL string) (*oura.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*oura.TokenResponse, error)
}

// UserService implements account and session operations.
type UserService struct {
	users    repository.UserRepository
	sessions *auth.SessionManager
	oauth    TokenExchanger
	producer *event.Producer
	logger   *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(
	users repository.UserRepository,
	sessions *auth.SessionManager,
	oauth TokenExchanger,
	producer *event.Producer,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		sessions: sessions,
		oauth:    oauth,
		producer: producer,
		logger:   logger,
	}
}

// SignupInput holds the parameters for creating an account.
type SignupInput struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
	Username  string
}

// Signup creates an account and returns a session token for it.
func (s *UserService) Signup(ctx context.Context, input SignupInput) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Username:     input.Username,
		PasswordHash: string(hashedPassword),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.sessions.Issue(user)
	if err != nil {
		return "", err
	}

	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("email", user.Email),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user signed up", slog.String("email", user.Email))
	return token, nil
}

// Login checks the password and returns a fresh session token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return "", apperrors.Unauthorized("Incorrect Password")
		}
		return "", fmt.Errorf("compare password: %w", err)
	}

	token, err := s.sessions.Issue(user)
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("email", user.Email))
	return token, nil
}

// UpdateOura stores new Oura credentials for the user and returns a session
// token carrying them.
func (s *UserService) UpdateOura(ctx context.Context, email, ouraToken, ouraRefresh string) (string, error) {
	if err := s.users.UpdateOuraTokens(ctx, email, ouraToken, ouraRefresh); err != nil {
		return "", fmt.Errorf("update oura tokens: %w", err)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}

	token, err := s.sessions.Issue(user)
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "oura tokens updated", slog.String("email", email))
	return token, nil
}

// GetToken exchanges an OAuth authorization code with the provider.
func (s *UserService) GetToken(ctx context.Context, code, redirectURL string) (*oura.TokenResponse, error) {
	resp, err := s.oauth.ExchangeCode(ctx, code, redirectURL)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return resp, nil
}

// RefreshToken trades a provider refresh token for a new token pair.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*oura.TokenResponse, error) {
	resp, err := s.oauth.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return resp, nil
}
