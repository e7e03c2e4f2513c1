package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/studentauth/internal/apperrors"
	"github.com/nkiryanov/studentauth/internal/handlers/render"
	"github.com/nkiryanov/studentauth/internal/handlers/userctx"
)

func handleUserMe(userService userService, errs errorRenderer) http.Handler {
	type response struct {
		ID        uuid.UUID `json:"id"`
		Username  string    `json:"username"`
		Email     string    `json:"email"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"createdAt"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := userctx.FromContext(r.Context())
		if !ok {
			errs.render(w, r, apperrors.Unauthorized("User not authenticated", nil))
			return
		}

		user, err := userService.GetUser(r.Context(), principal.ID)
		if err != nil {
			errs.render(w, r, err)
			return
		}

		render.JSON(w, response{
			ID:        user.ID,
			Username:  user.Username,
			Email:     user.Email,
			Name:      user.Name,
			CreatedAt: user.CreatedAt,
		})
	})
}

func handleDeleteMe(userService userService, errs errorRenderer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := userctx.FromContext(r.Context())
		if !ok {
			errs.render(w, r, apperrors.Unauthorized("User not authenticated", nil))
			return
		}

		err := userService.DeleteAccount(r.Context(), principal.ID)
		if err != nil {
			errs.render(w, r, err)
			return
		}

		render.JSON(w, messageResponse{Message: "Account deleted successfully"})
	})
}
