package http

import (
	"errors"
	"net/http"

	"github.com/syla-app/syla-auth/internal/auth/domain"
	"github.com/syla-app/syla-auth/internal/auth/service"
	"github.com/syla-app/syla-auth/internal/auth/store"
	"github.com/syla-app/syla-auth/pkg/httpx"
)

// VerifyHandler serves GET /v1/auth/verify, the target of the mailed link.
// A good token creates the account and answers with the profile plus a first
// token pair; a reused or stale link gets a 400 with no hint which it was.
type VerifyHandler struct {
	RegistrationService *service.RegistrationService
}

type verifyResponse struct {
	User   userResponse     `json:"user"`
	Tokens domain.TokenPair `json:"tokens"`
}

func (h *VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Missing token")
		return
	}

	user, pair, err := h.RegistrationService.Complete(r.Context(), token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, service.ErrUnauthorized) {
			httpx.WriteError(w, http.StatusBadRequest, "Invalid or expired verification link")
			return
		}
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, verifyResponse{
		User:   newUserResponse(user),
		Tokens: pair,
	})
}
