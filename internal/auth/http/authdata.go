package http

import (
	"errors"
	"net/http"

	"github.com/syla-app/syla-auth/internal/auth/service"
	"github.com/syla-app/syla-auth/internal/auth/store"
	"github.com/syla-app/syla-auth/pkg/httpx"
)

// AuthDataHandler serves GET /v1/auth/auth-data. After a completed login the
// client polls this with the state id it was handed and receives the parked
// token pair exactly once. A consumed, expired or unknown id answers 400; the
// endpoint never distinguishes the three.
type AuthDataHandler struct {
	TokenService *service.TokenService
}

func (h *AuthDataHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stateID := r.URL.Query().Get("state_id")
	if stateID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Missing state_id")
		return
	}

	pair, err := h.TokenService.ConsumeStateExchange(r.Context(), stateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusBadRequest, "Invalid or expired state_id")
			return
		}
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, pair)
}
