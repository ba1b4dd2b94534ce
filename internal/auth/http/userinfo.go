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

// UserInfoHandler serves GET /v1/users/me for the bearer of a valid access
// token.
type UserInfoHandler struct {
	TokenService *service.TokenService
	Users        store.Users
}

type userResponse struct {
	ID            string    `json:"user_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PreferredName string    `json:"preferred_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func newUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		PreferredName: u.PreferredName,
		CreatedAt:     u.CreatedAt,
	}
}

func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	user, err := h.Users.FindByID(ctx, claims.Subject)
	if err != nil {
		// Validation just confirmed the record; losing it here is a race
		// with deletion, same outcome as an invalid token.
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, newUserResponse(user))
}
