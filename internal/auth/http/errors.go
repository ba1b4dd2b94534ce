package http

import (
	"errors"
	"net/http"

	"github.com/syla-app/syla-auth/internal/auth/service"
	"github.com/syla-app/syla-auth/pkg/httpx"
	"github.com/syla-app/syla-auth/pkg/slogx"
)

// writeServiceError maps service errors onto the boundary's status codes.
// Validation failures collapse to one undifferentiated 401; everything the
// taxonomy does not name is an infrastructure fault and answers 503 so
// callers can tell "try again later" from "your token is dead".
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		httpx.WriteError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, service.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, "Session could not be revoked")
	case errors.Is(err, service.ErrUsernameTaken):
		httpx.WriteError(w, http.StatusConflict, "Username already registered")
	case errors.Is(err, service.ErrInvalidRegistration):
		httpx.WriteError(w, http.StatusBadRequest, "Invalid registration request")
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
	}
}
