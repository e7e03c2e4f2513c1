package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/studentauth/internal/handlers/middleware"
	"github.com/nkiryanov/studentauth/internal/logger"
	"github.com/nkiryanov/studentauth/internal/models"
	"github.com/nkiryanov/studentauth/internal/service/auth"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// Router options
type Options struct {
	// Add error chain to error responses, never set in production
	Verbose bool
}

func NewRouter(
	authService authService,
	userService userService,
	logger logger.Logger,
	opts Options,
) http.Handler {
	errs := errorRenderer{logger: logger, verbose: opts.Verbose}
	withAuth := middleware.AuthMiddleware(authService, errs.render)

	apiauth := http.NewServeMux()
	apiauth.Handle("POST /register", handleRegister(authService, errs))
	apiauth.Handle("POST /login", handleLogin(authService, errs))
	apiauth.Handle("POST /refresh", handleTokenRefresh(authService, errs))
	apiauth.Handle("POST /logout", withAuth(handleLogout(authService, errs)))

	apiuser := http.NewServeMux()
	apiuser.Handle("GET /me", withAuth(handleUserMe(userService, errs)))
	apiuser.Handle("DELETE /me", withAuth(handleDeleteMe(userService, errs)))

	root := http.NewServeMux()
	root.Handle("/api/users/auth/", http.StripPrefix("/api/users/auth", apiauth))
	root.Handle("/api/users/", http.StripPrefix("/api/users", apiuser))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Register user and issue first token pair
	// Fails with classified apperrors.Error: validation or conflict
	Register(ctx context.Context, p auth.RegisterParams) (auth.Session, error)

	// Login user by username or email
	Login(ctx context.Context, identifier string, password string) (auth.Session, error)

	// Exchange refresh token for a new pair, the presented one stops working
	RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error)

	// Forget refresh token of the user
	Logout(ctx context.Context, userID uuid.UUID) error

	// Validate access token
	Authenticate(ctx context.Context, access string) (models.Principal, error)
}

type userService interface {
	GetUser(ctx context.Context, userID uuid.UUID) (models.User, error)
	DeleteAccount(ctx context.Context, userID uuid.UUID) error
}
