package handlers

import (
	"net/http"

	"github.com/nkiryanov/studentauth/internal/apperrors"
	"github.com/nkiryanov/studentauth/internal/handlers/render"
	"github.com/nkiryanov/studentauth/internal/logger"
)

type errorRenderer struct {
	logger  logger.Logger
	verbose bool
}

// Render service error, server faults are logged with request details
func (e errorRenderer) render(w http.ResponseWriter, r *http.Request, err error) {
	if apperrors.KindOf(err) == apperrors.KindServer {
		e.logger.Error("request failed", "method", r.Method, "uri", r.RequestURI, "error", err)
	}
	render.Error(w, err, e.verbose)
}
