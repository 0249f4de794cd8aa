package repository

import (
	"context"

	"github.com/3Health-View/backend/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user. A taken email returns an AlreadyExists error.
	Create(ctx context.Context, user *domain.User) error

	// GetByEmail retrieves a user by their email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdateOuraTokens replaces the stored Oura credentials of a user.
	UpdateOuraTokens(ctx context.Context, email, ouraToken, ouraRefresh string) error
}

// DocumentRepository persists per-user provider documents and display rows.
type DocumentRepository interface {
	// LatestDay returns the most recent display day stored for the user, or
	// domain.EpochDay when there is none.
	LatestDay(ctx context.Context, email string) (string, error)

	// ListDisplay returns all display rows of the user, most recent first.
	ListDisplay(ctx context.Context, email string) ([]domain.DisplayRecord, error)

	// UpsertDisplay replaces the display rows for each (email, day).
	UpsertDisplay(ctx context.Context, records []domain.DisplayRecord) error

	// UpsertRaw replaces the raw documents of a series for each record key.
	UpsertRaw(ctx context.Context, series domain.Series, records []domain.RawRecord) error

	// DeleteByEmail removes every document of the user from a collection and
	// returns the number of rows deleted.
	DeleteByEmail(ctx context.Context, collection domain.Collection, email string) (int64, error)
}

// DisplayCache holds recently served display lists keyed by session token.
type DisplayCache interface {
	// Get returns the cached list and whether it was present.
	Get(ctx context.Context, token string) ([]domain.DisplayRecord, bool, error)

	// Set stores the list for the configured TTL.
	Set(ctx context.Context, token string, records []domain.DisplayRecord) error
}
