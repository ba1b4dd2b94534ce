package http

import (
	"net/http"

	"github.com/syla-app/syla-auth/internal/auth/service"
	"github.com/syla-app/syla-auth/pkg/httpx"
	"github.com/syla-app/syla-auth/pkg/slogx"
)

// LogoutHandler serves POST /v1/auth/logout. The access token is the
// credential; on success the whole session is dead, both tokens blacklisted
// and the session entries cleared.
type LogoutHandler struct {
	TokenService *service.TokenService
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	slogx.FromContext(ctx).Info("session revoked", "user_id", subject)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"detail": "Logged out"})
}
