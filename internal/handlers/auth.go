package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/studentauth/internal/apperrors"
	"github.com/nkiryanov/studentauth/internal/handlers/render"
	"github.com/nkiryanov/studentauth/internal/handlers/userctx"
	"github.com/nkiryanov/studentauth/internal/service/auth"
)

// Profile with both tokens, returned on register and login
type sessionResponse struct {
	Message      string    `json:"message"`
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
}

func newSessionResponse(message string, s auth.Session) sessionResponse {
	return sessionResponse{
		Message:      message,
		ID:           s.User.ID,
		Username:     s.User.Username,
		Email:        s.User.Email,
		Name:         s.User.Name,
		AccessToken:  s.Tokens.Access.Value,
		RefreshToken: s.Tokens.Refresh.Value,
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

func handleRegister(authService authService, errs errorRenderer) http.Handler {
	// Presence and email format are checked by the service, tags only bound column sizes
	type request struct {
		Name     string `json:"name" validate:"max=255"`
		Username string `json:"username" validate:"max=150"`
		Email    string `json:"email" validate:"max=255"`
		Password string `json:"password"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		session, err := authService.Register(r.Context(), auth.RegisterParams{
			Name:     data.Name,
			Username: data.Username,
			Email:    data.Email,
			Password: data.Password,
		})
		if err != nil {
			errs.render(w, r, err)
			return
		}

		render.JSONWithStatus(w, newSessionResponse("User registered and logged in successfully", session), http.StatusCreated)
	})
}

func handleLogin(authService authService, errs errorRenderer) http.Handler {
	// Presence is checked by the service to answer with its message
	type request struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		session, err := authService.Login(r.Context(), data.Identifier, data.Password)
		if err != nil {
			errs.render(w, r, err)
			return
		}

		render.JSON(w, newSessionResponse("Logged in successfully", session))
	})
}

func handleTokenRefresh(authService authService, errs errorRenderer) http.Handler {
	// Missing token or empty body is Unauthorized, not a validation failure
	type request struct {
		RefreshToken string `json:"refreshToken"`
	}
	type response struct {
		Message      string `json:"message"`
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindOptional[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.RefreshPair(r.Context(), data.RefreshToken)
		if err != nil {
			errs.render(w, r, err)
			return
		}

		render.JSON(w, response{
			Message:      "Tokens refreshed successfully",
			AccessToken:  pair.Access.Value,
			RefreshToken: pair.Refresh.Value,
		})
	})
}

func handleLogout(authService authService, errs errorRenderer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := userctx.FromContext(r.Context())
		if !ok {
			errs.render(w, r, apperrors.Unauthorized("User not authenticated for logout", nil))
			return
		}

		err := authService.Logout(r.Context(), principal.ID)
		if err != nil {
			errs.render(w, r, err)
			return
		}

		render.JSON(w, messageResponse{Message: "User logged out successfully"})
	})
}
