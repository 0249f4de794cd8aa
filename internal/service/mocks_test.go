package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"github.com/3Health-View/backend/internal/domain"
	"github.com/3Health-View/backend/internal/event"
	"github.com/3Health-View/backend/internal/oura"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) UpdateOuraTokens(ctx context.Context, email, ouraToken, ouraRefresh string) error {
	args := m.Called(ctx, email, ouraToken, ouraRefresh)
	return args.Error(0)
}

// --- Mock Document Repository ---

type mockDocumentRepository struct {
	mock.Mock
}

func (m *mockDocumentRepository) LatestDay(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *mockDocumentRepository) ListDisplay(ctx context.Context, email string) ([]domain.DisplayRecord, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DisplayRecord), args.Error(1)
}

func (m *mockDocumentRepository) UpsertDisplay(ctx context.Context, records []domain.DisplayRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *mockDocumentRepository) UpsertRaw(ctx context.Context, series domain.Series, records []domain.RawRecord) error {
	args := m.Called(ctx, series, records)
	return args.Error(0)
}

func (m *mockDocumentRepository) DeleteByEmail(ctx context.Context, collection domain.Collection, email string) (int64, error) {
	args := m.Called(ctx, collection, email)
	return args.Get(0).(int64), args.Error(1)
}

// --- Mock Display Cache ---

type mockDisplayCache struct {
	mock.Mock
}

func (m *mockDisplayCache) Get(ctx context.Context, token string) ([]domain.DisplayRecord, bool, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]domain.DisplayRecord), args.Bool(1), args.Error(2)
}

func (m *mockDisplayCache) Set(ctx context.Context, token string, records []domain.DisplayRecord) error {
	args := m.Called(ctx, token, records)
	return args.Error(0)
}

// --- Mock Fetcher ---

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchAll(ctx context.Context, accessToken string, reqs []oura.Request) (map[string]oura.Payload, error) {
	args := m.Called(ctx, accessToken, reqs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]oura.Payload), args.Error(1)
}

// --- Mock Recommender ---

type mockRecommender struct {
	mock.Mock
}

func (m *mockRecommender) Recommend(records []domain.DisplayRecord) error {
	args := m.Called(records)
	return args.Error(0)
}

// --- Mock Token Exchanger ---

type mockTokenExchanger struct {
	mock.Mock
}

func (m *mockTokenExchanger) ExchangeCode(ctx context.Context, code, redirectURL string) (*oura.TokenResponse, error) {
	args := m.Called(ctx, code, redirectURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oura.TokenResponse), args.Error(1)
}

func (m *mockTokenExchanger) Refresh(ctx context.Context, refreshToken string) (*oura.TokenResponse, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oura.TokenResponse), args.Error(1)
}

// --- Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestProducer() *event.Producer {
	return event.NewProducer(nil, "threehv.events", newTestLogger())
}
