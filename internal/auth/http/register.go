package http

import (
	"encoding/json"
	"net/http"

	"github.com/syla-app/syla-auth/internal/auth/domain"
	"github.com/syla-app/syla-auth/internal/auth/service"
	"github.com/syla-app/syla-auth/pkg/httpx"
)

// RegisterHandler serves POST /v1/auth/register. It opens an e-mail
// registration: the attributes are parked and a verification link is mailed.
// 202 because no account exists yet; that happens at the verify endpoint.
type RegisterHandler struct {
	RegistrationService *service.RegistrationService
}

type registerRequest struct {
	Username      string `json:"username"`
	Email         string `json:"email"`
	PreferredName string `json:"preferred_name"`
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.RegistrationService.Begin(r.Context(), domain.PendingRegistration{
		Username:      req.Username,
		Email:         req.Email,
		PreferredName: req.PreferredName,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{
		"detail": "Verification email sent",
	})
}
