package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/studentauth/internal/apperrors"
	"github.com/nkiryanov/studentauth/internal/models"
	"github.com/nkiryanov/studentauth/internal/repository"
)

type UserRepo struct {
	st   *state
	undo undoLog
}

func (r *UserRepo) CreateUser(_ context.Context, arg repository.CreateUserParams) (models.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.findLocked(func(u models.User) bool { return u.Username == arg.Username }); ok {
		return models.User{}, apperrors.ErrUsernameTaken
	}
	if _, ok := r.findLocked(func(u models.User) bool { return u.Email == arg.Email }); ok {
		return models.User{}, apperrors.ErrEmailTaken
	}

	now := time.Now()
	user := models.User{
		ID:             uuid.New(),
		Username:       arg.Username,
		Email:          arg.Email,
		Name:           arg.Name,
		HashedPassword: arg.HashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.undo.record(r.st, user.ID)
	r.st.users[user.ID] = user

	return copyUser(user), nil
}

func (r *UserRepo) GetUserByID(_ context.Context, id uuid.UUID) (models.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	user, ok := r.st.users[id]
	if !ok || user.DeletedAt != nil {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return copyUser(user), nil
}

func (r *UserRepo) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	return r.find(func(u models.User) bool { return u.Username == username })
}

func (r *UserRepo) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	return r.find(func(u models.User) bool { return u.Email == email })
}

func (r *UserRepo) SaveUser(_ context.Context, u models.User) (models.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	stored, ok := r.st.users[u.ID]
	if !ok || stored.DeletedAt != nil {
		return models.User{}, apperrors.ErrUserNotFound
	}

	if other, ok := r.findLocked(func(o models.User) bool { return o.Username == u.Username }); ok && other.ID != u.ID {
		return models.User{}, apperrors.ErrUsernameTaken
	}
	if other, ok := r.findLocked(func(o models.User) bool { return o.Email == u.Email }); ok && other.ID != u.ID {
		return models.User{}, apperrors.ErrEmailTaken
	}

	stored.Username = u.Username
	stored.Email = u.Email
	stored.Name = u.Name
	stored.HashedPassword = u.HashedPassword
	stored.RefreshToken = copyString(u.RefreshToken)
	stored.UpdatedAt = time.Now()
	r.undo.record(r.st, u.ID)
	r.st.users[u.ID] = stored

	return copyUser(stored), nil
}

func (r *UserRepo) SwapRefreshToken(_ context.Context, id uuid.UUID, expected string, next string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	user, ok := r.st.users[id]
	if !ok || user.DeletedAt != nil {
		return apperrors.ErrUserNotFound
	}
	if user.RefreshToken == nil || *user.RefreshToken != expected {
		return apperrors.ErrRefreshTokenMismatch
	}

	user.RefreshToken = &next
	user.UpdatedAt = time.Now()
	r.undo.record(r.st, id)
	r.st.users[id] = user

	return nil
}

func (r *UserRepo) SoftDeleteUser(_ context.Context, id uuid.UUID) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	user, ok := r.st.users[id]
	if !ok || user.DeletedAt != nil {
		return apperrors.ErrUserNotFound
	}

	now := time.Now()
	user.DeletedAt = &now
	user.RefreshToken = nil
	user.UpdatedAt = now
	r.undo.record(r.st, id)
	r.st.users[id] = user

	return nil
}

func (r *UserRepo) find(match func(models.User) bool) (models.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	user, ok := r.findLocked(match)
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return copyUser(user), nil
}

// Find live user, caller must hold the lock
func (r *UserRepo) findLocked(match func(models.User) bool) (models.User, bool) {
	for _, u := range r.st.users {
		if u.DeletedAt == nil && match(u) {
			return u, true
		}
	}
	return models.User{}, false
}

// Stored users must not share pointers with callers
func copyUser(u models.User) models.User {
	u.RefreshToken = copyString(u.RefreshToken)
	if u.DeletedAt != nil {
		t := *u.DeletedAt
		u.DeletedAt = &t
	}
	return u
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
