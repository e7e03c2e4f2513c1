package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/studentauth/internal/apperrors"
	"github.com/nkiryanov/studentauth/internal/logger"
	"github.com/nkiryanov/studentauth/internal/models"
	"github.com/nkiryanov/studentauth/internal/service/auth"
)

type logEntry struct {
	level string
	msg   string
	args  []any
}

// Keep error records only, request log lines are not interesting here
type errorsLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *errorsLogger) Debug(string, ...any) {}
func (l *errorsLogger) Info(string, ...any)  {}
func (l *errorsLogger) Warn(string, ...any)  {}

func (l *errorsLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: "error", msg: msg, args: args})
}

func (l *errorsLogger) With(...any) logger.Logger      { return l }
func (l *errorsLogger) WithGroup(string) logger.Logger { return l }

func (l *errorsLogger) failed() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []logEntry
	for _, e := range l.entries {
		if e.msg == "request failed" {
			out = append(out, e)
		}
	}
	return out
}

// Only Authenticate is used by the tests below
type stubAuthService struct {
	authService
	authenticate func(ctx context.Context, access string) (models.Principal, error)
}

func (s stubAuthService) Authenticate(ctx context.Context, access string) (models.Principal, error) {
	return s.authenticate(ctx, access)
}

type stubUserService struct{}

func (stubUserService) GetUser(context.Context, uuid.UUID) (models.User, error) {
	return models.User{}, apperrors.NotFound("User not found", apperrors.ErrUserNotFound)
}

func (stubUserService) DeleteAccount(context.Context, uuid.UUID) error {
	return errors.New("not expected")
}

var _ authService = (*auth.AuthService)(nil)

func Test_ErrorRenderer(t *testing.T) {
	t.Parallel()

	serve := func(t *testing.T, authErr error) (int, *errorsLogger) {
		l := &errorsLogger{}
		a := stubAuthService{authenticate: func(context.Context, string) (models.Principal, error) {
			if authErr != nil {
				return models.Principal{}, authErr
			}
			return models.Principal{ID: uuid.New()}, nil
		}}
		srv := httptest.NewServer(NewRouter(a, stubUserService{}, l, Options{}))
		t.Cleanup(srv.Close)

		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/api/users/me", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer token")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close() //nolint:errcheck

		return resp.StatusCode, l
	}

	t.Run("server failure in auth middleware is logged", func(t *testing.T) {
		status, l := serve(t, apperrors.Server("Failed to validate token", errors.New("keys unavailable")))

		require.Equal(t, http.StatusInternalServerError, status)
		entries := l.failed()
		require.Len(t, entries, 1)
		assert.Contains(t, entries[0].args, "/api/users/me")
		assert.Contains(t, entries[0].args, http.MethodGet)
	})

	t.Run("client errors in auth middleware are not logged", func(t *testing.T) {
		status, l := serve(t, apperrors.Forbidden("Invalid access token", apperrors.ErrTokenInvalid))

		require.Equal(t, http.StatusForbidden, status)
		assert.Empty(t, l.failed())
	})

	t.Run("client errors in handlers are not logged", func(t *testing.T) {
		status, l := serve(t, nil)

		require.Equal(t, http.StatusNotFound, status)
		assert.Empty(t, l.failed())
	})
}
