package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/nkiryanov/studentauth/internal/apperrors"
	"github.com/nkiryanov/studentauth/internal/handlers/userctx"
	"github.com/nkiryanov/studentauth/internal/models"
)

const bearerScheme = "Bearer"

type authenticator interface {
	// Validate access token, return classified error if it's expired or invalid
	Authenticate(ctx context.Context, access string) (models.Principal, error)
}

// Writes error response, same renderer as the rest of the router uses
type ErrorRenderer func(w http.ResponseWriter, r *http.Request, err error)

// Require 'Authorization: Bearer <access token>' header
// Principal carried by the token is put into request context, see userctx.FromContext
func AuthMiddleware(a authenticator, renderError ErrorRenderer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access, err := bearerToken(r)
			if err != nil {
				renderError(w, r, err)
				return
			}

			principal, err := a.Authenticate(r.Context(), access)
			if err != nil {
				renderError(w, r, err)
				return
			}

			ctx := userctx.New(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, _ := strings.Cut(header, " ")
	if scheme != bearerScheme {
		return "", apperrors.Unauthorized("Authorization token is missing or invalid", nil)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperrors.Unauthorized("Token is required", nil)
	}

	return token, nil
}
