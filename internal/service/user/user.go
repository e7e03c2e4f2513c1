package user

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/nkiryanov/studentauth/internal/apperrors"
	"github.com/nkiryanov/studentauth/internal/logger"
	"github.com/nkiryanov/studentauth/internal/models"
	"github.com/nkiryanov/studentauth/internal/repository"
)

// Account operations of an already authenticated user
type UserService struct {
	storage repository.Storage
	logger  logger.Logger
}

func NewService(storage repository.Storage, l logger.Logger) *UserService {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &UserService{
		storage: storage,
		logger:  l.With("service", "user"),
	}
}

func (s *UserService) GetUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	user, err := s.storage.User().GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return user, apperrors.NotFound("User not found", err)
	case err != nil:
		s.logger.Error("failed to load user", "user_id", userID, "error", err)
		return user, apperrors.Server("Failed to load user", err)
	}

	return user, nil
}

// Soft delete the account: row is kept, user can't log in or refresh anymore
// Username and email become free for new registrations
func (s *UserService) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	err := s.storage.User().SoftDeleteUser(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return apperrors.NotFound("User not found", err)
	case err != nil:
		s.logger.Error("failed to delete user", "user_id", userID, "error", err)
		return apperrors.Server("Failed to delete account", err)
	}

	s.logger.Info("user deleted", "user_id", userID)
	return nil
}
