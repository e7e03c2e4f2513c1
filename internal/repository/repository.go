package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkiryanov/studentauth/internal/models"
)

type CreateUserParams struct {
	Username       string
	Email          string
	Name           string
	HashedPassword string
}

// User repository interface
// Soft deleted users are invisible for every method: they are neither found nor block usernames or emails
type UserRepo interface {
	// Create user
	// Username checked first, then email:
	// must return apperrors.ErrUsernameTaken or apperrors.ErrEmailTaken if any already used by a live user
	CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error)

	// Get user by it's id, username or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Persist mutable fields of the user (profile, password hash, refresh token)
	// If user not found must return apperrors.ErrUserNotFound
	SaveUser(ctx context.Context, user models.User) (models.User, error)

	// Replace stored refresh token with next one only if stored one equals expected
	// Must be atomic: two concurrent swaps with the same expected token can't both succeed
	// If user not found must return apperrors.ErrUserNotFound
	// If stored token differs must return apperrors.ErrRefreshTokenMismatch
	SwapRefreshToken(ctx context.Context, userID uuid.UUID, expected string, next string) error

	// Mark user deleted and forget its refresh token. The row is kept
	// If user not found must return apperrors.ErrUserNotFound
	SoftDeleteUser(ctx context.Context, userID uuid.UUID) error
}

type Storage interface {
	User() UserRepo

	// Run function in transaction
	// Storage passed to fn is bound to the transaction: rolled back if fn returns error
	InTx(ctx context.Context, fn func(Storage) error) error
}
