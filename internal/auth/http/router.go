// Package http is the HTTP boundary: thin handlers that map requests onto
// service operations and service errors onto status codes. No token or
// session logic lives here.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/syla-app/syla-auth/internal/auth/service"
	"github.com/syla-app/syla-auth/internal/auth/store"
	"github.com/syla-app/syla-auth/pkg/httpx"
	"github.com/syla-app/syla-auth/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store               store.Store
	TokenService        *service.TokenService
	RegistrationService *service.RegistrationService
	Users               store.Users
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerTokens()
	r.registerRegistration()
	r.registerUsers()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerTokens() {
	// POST /token/refresh - strict rate limit (credential exercise)
	refreshHandler := &RefreshHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/auth/token/refresh",
		httpx.Chain(refreshHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// GET /auth-data - strict rate limit (guessable state ids must stay
	// expensive to scan)
	authDataHandler := &AuthDataHandler{TokenService: r.TokenService}
	r.Mux.Handle("GET /v1/auth/auth-data",
		httpx.Chain(authDataHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /logout - moderate rate limit
	logoutHandler := &LogoutHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(logoutHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// GET /session - lenient, clients poll this to schedule refreshes
	sessionHandler := &SessionHandler{TokenService: r.TokenService}
	r.Mux.Handle("GET /v1/auth/session",
		httpx.Chain(sessionHandler,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// DELETE /account - strict rate limit (destructive)
	accountHandler := &AccountDeleteHandler{
		TokenService: r.TokenService,
		Users:        r.Users,
	}
	r.Mux.Handle("DELETE /v1/auth/account",
		httpx.Chain(accountHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerRegistration() {
	// POST /register - strict rate limit by IP (public signup endpoint)
	registerHandler := &RegisterHandler{RegistrationService: r.RegistrationService}
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(registerHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// GET /verify - strict rate limit (token guessing)
	verifyHandler := &VerifyHandler{RegistrationService: r.RegistrationService}
	r.Mux.Handle("GET /v1/auth/verify",
		httpx.Chain(verifyHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UserInfoHandler{
		TokenService: r.TokenService,
		Users:        r.Users,
	}

	r.Mux.Handle("GET /v1/users/me",
		httpx.Chain(h,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient limits, monitors poll these
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
