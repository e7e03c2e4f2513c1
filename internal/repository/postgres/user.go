package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/studentauth/internal/apperrors"
	"github.com/nkiryanov/studentauth/internal/models"
	"github.com/nkiryanov/studentauth/internal/repository"
)

// Names of partial unique indexes from migrations
const (
	usernameUniqueIndex = "users_username_live_key"
	emailUniqueIndex    = "users_email_live_key"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, username, email, name, password_hash, refresh_token, created_at, updated_at, deleted_at`

const usernameTaken = `-- name: UsernameTaken
SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND deleted_at IS NULL)
`

const emailTaken = `-- name: EmailTaken
SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND deleted_at IS NULL)
`

const createUser = `-- name: CreateUser
INSERT INTO users (id, username, email, name, password_hash)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, arg repository.CreateUserParams) (models.User, error) {
	var user models.User

	// Check uniqueness before insert to report which field is taken
	// Unique indexes still protect from the race between check and insert
	taken, err := r.exists(ctx, usernameTaken, arg.Username)
	if err != nil {
		return user, err
	}
	if taken {
		return user, apperrors.ErrUsernameTaken
	}

	taken, err = r.exists(ctx, emailTaken, arg.Email)
	if err != nil {
		return user, err
	}
	if taken {
		return user, apperrors.ErrEmailTaken
	}

	rows, _ := r.DB.Query(ctx, createUser, uuid.New(), arg.Username, arg.Email, arg.Name, arg.HashedPassword)
	user, err = pgx.CollectOneRow(rows, rowToUser)
	if err != nil {
		return user, uniqueViolationOr(err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + ` FROM users
WHERE id = $1 AND deleted_at IS NULL
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	return r.getOne(ctx, getUserByID, id)
}

const getUserByUsername = `-- name: GetUserByUsername
SELECT ` + userColumns + ` FROM users
WHERE username = $1 AND deleted_at IS NULL
`

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return r.getOne(ctx, getUserByUsername, username)
}

const getUserByEmail = `-- name: GetUserByEmail
SELECT ` + userColumns + ` FROM users
WHERE email = $1 AND deleted_at IS NULL
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return r.getOne(ctx, getUserByEmail, email)
}

const saveUser = `-- name: SaveUser
UPDATE users
SET username = $2, email = $3, name = $4, password_hash = $5, refresh_token = $6, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + userColumns

func (r *UserRepo) SaveUser(ctx context.Context, u models.User) (models.User, error) {
	rows, _ := r.DB.Query(ctx, saveUser, u.ID, u.Username, u.Email, u.Name, u.HashedPassword, u.RefreshToken)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, uniqueViolationOr(err)
	}
}

const swapRefreshToken = `-- name: SwapRefreshToken
UPDATE users
SET refresh_token = $3, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL AND refresh_token = $2
`

// Compare and swap in a single statement: the row lock taken by UPDATE serializes concurrent swaps,
// the loser re-evaluates WHERE against the new value and updates nothing
func (r *UserRepo) SwapRefreshToken(ctx context.Context, id uuid.UUID, expected string, next string) error {
	tag, err := r.DB.Exec(ctx, swapRefreshToken, id, expected, next)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	// Nothing updated: tell missing user from stale token
	_, err = r.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	return apperrors.ErrRefreshTokenMismatch
}

const softDeleteUser = `-- name: SoftDeleteUser
UPDATE users
SET deleted_at = NOW(), refresh_token = NULL, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL
`

func (r *UserRepo) SoftDeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, softDeleteUser, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (models.User, error) {
	rows, _ := r.DB.Query(ctx, query, arg)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func (r *UserRepo) exists(ctx context.Context, query string, arg any) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, query, arg).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// Map unique violations to well known errors, wrap the rest
func uniqueViolationOr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		switch pgErr.ConstraintName {
		case usernameUniqueIndex:
			return apperrors.ErrUsernameTaken
		case emailUniqueIndex:
			return apperrors.ErrEmailTaken
		}
	}

	return fmt.Errorf("db error: %w", err)
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.Name,
		&u.HashedPassword,
		&u.RefreshToken,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.DeletedAt,
	)
	return u, err
}
