package memory

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/studentauth/internal/apperrors"
	"github.com/nkiryanov/studentauth/internal/repository"
)

func newUserParams(username string) repository.CreateUserParams {
	return repository.CreateUserParams{
		Username:       username,
		Email:          username + "@example.com",
		Name:           "Test Student",
		HashedPassword: "hashedpassword123",
	}
}

func Test_UserRepo(t *testing.T) {
	t.Parallel()

	t.Run("create and get user", func(t *testing.T) {
		r := NewStorage().User()

		created, err := r.CreateUser(t.Context(), newUserParams("student"))
		require.NoError(t, err)

		byID, err := r.GetUserByID(t.Context(), created.ID)
		require.NoError(t, err)
		byUsername, err := r.GetUserByUsername(t.Context(), "student")
		require.NoError(t, err)
		byEmail, err := r.GetUserByEmail(t.Context(), "student@example.com")
		require.NoError(t, err)

		assert.Equal(t, created, byID)
		assert.Equal(t, created.ID, byUsername.ID)
		assert.Equal(t, created.ID, byEmail.ID)
		assert.Nil(t, created.RefreshToken)
	})

	t.Run("create user conflicts", func(t *testing.T) {
		r := NewStorage().User()
		_, err := r.CreateUser(t.Context(), newUserParams("taken"))
		require.NoError(t, err)

		_, err = r.CreateUser(t.Context(), newUserParams("taken"))
		assert.ErrorIs(t, err, apperrors.ErrUsernameTaken, "username checked first")

		params := newUserParams("other")
		params.Email = "taken@example.com"
		_, err = r.CreateUser(t.Context(), params)
		assert.ErrorIs(t, err, apperrors.ErrEmailTaken)
	})

	t.Run("not found", func(t *testing.T) {
		r := NewStorage().User()

		_, err := r.GetUserByID(t.Context(), uuid.New())
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		_, err = r.GetUserByUsername(t.Context(), "nobody")
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		_, err = r.GetUserByEmail(t.Context(), "nobody@example.com")
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		err = r.SwapRefreshToken(t.Context(), uuid.New(), "a", "b")
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		err = r.SoftDeleteUser(t.Context(), uuid.New())
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	})

	t.Run("returned user does not share refresh token", func(t *testing.T) {
		r := NewStorage().User()
		user, err := r.CreateUser(t.Context(), newUserParams("student"))
		require.NoError(t, err)
		token := "first"
		user.RefreshToken = &token
		_, err = r.SaveUser(t.Context(), user)
		require.NoError(t, err)

		token = "mutated"

		got, err := r.GetUserByID(t.Context(), user.ID)
		require.NoError(t, err)
		assert.Equal(t, "first", *got.RefreshToken)
	})

	t.Run("swap refresh token", func(t *testing.T) {
		r := NewStorage().User()
		user, err := r.CreateUser(t.Context(), newUserParams("student"))
		require.NoError(t, err)

		err = r.SwapRefreshToken(t.Context(), user.ID, "", "first")
		assert.ErrorIs(t, err, apperrors.ErrRefreshTokenMismatch, "nothing stored yet")

		token := "first"
		user.RefreshToken = &token
		_, err = r.SaveUser(t.Context(), user)
		require.NoError(t, err)

		err = r.SwapRefreshToken(t.Context(), user.ID, "first", "second")
		require.NoError(t, err)
		err = r.SwapRefreshToken(t.Context(), user.ID, "first", "third")
		assert.ErrorIs(t, err, apperrors.ErrRefreshTokenMismatch)

		got, err := r.GetUserByID(t.Context(), user.ID)
		require.NoError(t, err)
		assert.Equal(t, "second", *got.RefreshToken)
	})

	t.Run("concurrent swaps with same token", func(t *testing.T) {
		r := NewStorage().User()
		user, err := r.CreateUser(t.Context(), newUserParams("student"))
		require.NoError(t, err)
		token := "shared"
		user.RefreshToken = &token
		_, err = r.SaveUser(t.Context(), user)
		require.NoError(t, err)

		var wg sync.WaitGroup
		results := make([]error, 10)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = r.SwapRefreshToken(t.Context(), user.ID, "shared", uuid.NewString())
			}()
		}
		wg.Wait()

		succeeded := 0
		for _, err := range results {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, apperrors.ErrRefreshTokenMismatch)
		}
		assert.Equal(t, 1, succeeded, "only one swap may win")
	})

	t.Run("soft delete", func(t *testing.T) {
		r := NewStorage().User()
		user, err := r.CreateUser(t.Context(), newUserParams("leaver"))
		require.NoError(t, err)

		err = r.SoftDeleteUser(t.Context(), user.ID)
		require.NoError(t, err)

		_, err = r.GetUserByID(t.Context(), user.ID)
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		_, err = r.GetUserByUsername(t.Context(), "leaver")
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		_, err = r.SaveUser(t.Context(), user)
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

		again, err := r.CreateUser(t.Context(), newUserParams("leaver"))
		require.NoError(t, err, "username and email are free again")
		assert.NotEqual(t, user.ID, again.ID)
	})
}

func Test_Storage(t *testing.T) {
	t.Parallel()

	t.Run("rollback on error", func(t *testing.T) {
		s := NewStorage()
		boom := errors.New("boom")

		err := s.InTx(t.Context(), func(txs repository.Storage) error {
			_, err := txs.User().CreateUser(t.Context(), newUserParams("rolledback"))
			require.NoError(t, err)
			return boom
		})

		assert.ErrorIs(t, err, boom)
		_, err = s.User().GetUserByUsername(t.Context(), "rolledback")
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	})

	t.Run("commit on success", func(t *testing.T) {
		s := NewStorage()

		err := s.InTx(t.Context(), func(txs repository.Storage) error {
			_, err := txs.User().CreateUser(t.Context(), newUserParams("committed"))
			return err
		})

		require.NoError(t, err)
		_, err = s.User().GetUserByUsername(t.Context(), "committed")
		assert.NoError(t, err)
	})

	t.Run("rollback keeps changes made outside transaction", func(t *testing.T) {
		s := NewStorage()
		existing, err := s.User().CreateUser(t.Context(), newUserParams("existing"))
		require.NoError(t, err)
		boom := errors.New("boom")

		inTx := make(chan struct{})
		outsideDone := make(chan struct{})
		go func() {
			<-inTx
			defer close(outsideDone)

			_, err := s.User().CreateUser(t.Context(), newUserParams("outsider"))
			assert.NoError(t, err)

			token := "outside-token"
			existing.RefreshToken = &token
			_, err = s.User().SaveUser(t.Context(), existing)
			assert.NoError(t, err)
		}()

		err = s.InTx(t.Context(), func(txs repository.Storage) error {
			_, err := txs.User().CreateUser(t.Context(), newUserParams("insider"))
			require.NoError(t, err)

			close(inTx)
			<-outsideDone
			return boom
		})

		require.ErrorIs(t, err, boom)
		_, err = s.User().GetUserByUsername(t.Context(), "insider")
		assert.ErrorIs(t, err, apperrors.ErrUserNotFound, "transaction changes rolled back")
		_, err = s.User().GetUserByUsername(t.Context(), "outsider")
		assert.NoError(t, err, "user created outside transaction must survive rollback")
		got, err := s.User().GetUserByID(t.Context(), existing.ID)
		require.NoError(t, err)
		require.NotNil(t, got.RefreshToken)
		assert.Equal(t, "outside-token", *got.RefreshToken, "update made outside transaction must survive rollback")
	})

	t.Run("rollback restores updated users", func(t *testing.T) {
		s := NewStorage()
		user, err := s.User().CreateUser(t.Context(), newUserParams("updated"))
		require.NoError(t, err)
		boom := errors.New("boom")

		err = s.InTx(t.Context(), func(txs repository.Storage) error {
			token := "tx-token"
			user.RefreshToken = &token
			user.Name = "changed"
			_, err := txs.User().SaveUser(t.Context(), user)
			require.NoError(t, err)
			require.NoError(t, txs.User().SwapRefreshToken(t.Context(), user.ID, "tx-token", "next-token"))
			return boom
		})

		require.ErrorIs(t, err, boom)
		got, err := s.User().GetUserByID(t.Context(), user.ID)
		require.NoError(t, err)
		assert.Nil(t, got.RefreshToken)
		assert.NotEqual(t, "changed", got.Name)
	})

	t.Run("nested transaction joins outer one", func(t *testing.T) {
		s := NewStorage()

		err := s.InTx(t.Context(), func(txs repository.Storage) error {
			return txs.InTx(t.Context(), func(inner repository.Storage) error {
				_, err := inner.User().CreateUser(t.Context(), newUserParams("nested"))
				return err
			})
		})

		require.NoError(t, err)
		_, err = s.User().GetUserByUsername(t.Context(), "nested")
		assert.NoError(t, err)
	})
}
