package http

import (
	"net/http"
	"time"

	"github.com/syla-app/syla-auth/internal/auth/store"
	"github.com/syla-app/syla-auth/pkg/httpx"
)

// ReadyzHandler is the readiness probe. The ephemeral store is the one hard
// dependency of every token operation, so its ping decides readiness.
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"store": "ok"}
		status := "ok"
		code := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks["store"] = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, healthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
