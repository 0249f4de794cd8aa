package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/3Health-View/backend/internal/domain"
	"github.com/3Health-View/backend/pkg/database"
	apperrors "github.com/3Health-View/backend/pkg/errors"
)

// Caller-facing messages of user lookups.
const (
	msgUserExists   = "User already exists."
	msgUserNotFound = "User does not exist"
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const insertUserQuery = `
	INSERT INTO users (id, email, first_name, last_name, username, password_hash, oura_token, oura_refresh, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateUser", insertUserQuery)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, insertUserQuery,
		u.ID,
		u.Email,
		u.FirstName,
		u.LastName,
		u.Username,
		u.PasswordHash,
		u.OuraToken,
		u.OuraRefresh,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists(msgUserExists)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

const selectUserByEmailQuery = `
	SELECT id, email, first_name, last_name, username, password_hash, oura_token, oura_refresh, created_at, updated_at
	FROM users
	WHERE email = $1`

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, "GetUserByEmail", selectUserByEmailQuery)
	defer func() { end(err) }()

	var u domain.User
	err = r.db.QueryRow(ctx, selectUserByEmailQuery, email).Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.Username,
		&u.PasswordHash,
		&u.OuraToken,
		&u.OuraRefresh,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(msgUserNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &u, nil
}

const updateOuraTokensQuery = `
	UPDATE users
	SET oura_token = $1, oura_refresh = $2, updated_at = $3
	WHERE email = $4`

// UpdateOuraTokens replaces the Oura credentials of the user with email.
func (r *UserRepository) UpdateOuraTokens(ctx context.Context, email, ouraToken, ouraRefresh string) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateOuraTokens", updateOuraTokensQuery)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, updateOuraTokensQuery, ouraToken, ouraRefresh, time.Now().UTC(), email)
	if err != nil {
		return fmt.Errorf("update oura tokens: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound(msgUserNotFound)
	}

	return nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
