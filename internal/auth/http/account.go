package http

import (
	"errors"
	"net/http"

	"github.com/syla-app/syla-auth/internal/auth/service"
	"github.com/syla-app/syla-auth/internal/auth/store"
	"github.com/syla-app/syla-auth/pkg/httpx"
	"github.com/syla-app/syla-auth/pkg/slogx"
)

// AccountDeleteHandler serves DELETE /v1/auth/account: revoke the caller's
// session, then delete the user record. Revocation runs first so a failed
// revoke leaves the account intact; a missing record after a successful
// revoke still counts as deleted.
type AccountDeleteHandler struct {
	TokenService *service.TokenService
	Users        store.Users
}

func (h *AccountDeleteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := httpx.BearerToken(r)
	if token == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	subject, err := h.TokenService.RevokeSession(ctx, token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if err := h.Users.Delete(ctx, subject); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeServiceError(w, r, err)
		return
	}

	slogx.FromContext(ctx).Info("account deleted", "user_id", subject)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"detail": "Account deleted"})
}
