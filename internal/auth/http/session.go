package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/syla-app/syla-auth/internal/auth/domain"
	"github.com/syla-app/syla-auth/internal/auth/service"
	"github.com/syla-app/syla-auth/internal/auth/store"
	"github.com/syla-app/syla-auth/pkg/httpx"
)

// SessionHandler serves GET /v1/auth/session: when the caller's session will
// die for good, i.e. the stored refresh token's expiry. Clients use it to
// decide whether a refresh is still worth attempting.
type SessionHandler struct {
	TokenService *service.TokenService
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := httpx.BearerToken(r)
	if token == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	claims, err := h.TokenService.Validate(ctx, token, domain.KindAccess)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	expiresAt, err := h.TokenService.SessionExpiresAt(ctx, claims.SessionID, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"session_id": claims.SessionID,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}
