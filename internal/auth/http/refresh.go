package http

import (
	"net/http"

	"github.com/syla-app/syla-auth/internal/auth/service"
	"github.com/syla-app/syla-auth/pkg/httpx"
)

// RefreshHandler serves POST /v1/auth/token/refresh. The refresh token
// arrives as the bearer credential and a fresh access token comes back; the
// refresh token itself is untouched and keeps working until its own expiry.
type RefreshHandler struct {
	TokenService *service.TokenService
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := httpx.BearerToken(r)
	if token == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	access, err := h.TokenService.Refresh(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"access_token": access,
		"token_type":   "Bearer",
	})
}
