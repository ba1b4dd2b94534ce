// Package app assembles the service: configuration, stores, services, HTTP.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/syla-app/syla-auth/internal/auth/http"
	"github.com/syla-app/syla-auth/internal/auth/mail"
	"github.com/syla-app/syla-auth/internal/auth/service"
	"github.com/syla-app/syla-auth/internal/auth/store"
	"github.com/syla-app/syla-auth/internal/auth/store/drivers/redis"
	"github.com/syla-app/syla-auth/internal/auth/store/drivers/sqlite"
	"github.com/syla-app/syla-auth/pkg/jwtx"
	"github.com/syla-app/syla-auth/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application holds the assembled service and its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	ephemeral *redis.Store
	records   *sqlite.Store
	users     store.Users

	tokenService        *service.TokenService
	registrationService *service.RegistrationService

	server *http.Server
	router *httpapi.Router
}

// New builds the application. Both stores must be reachable or construction
// fails; a half-wired auth service has no useful degraded mode.
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "syla-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initStores(ctx); err != nil {
		return nil, err
	}
	if err := app.initServices(); err != nil {
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the server and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains the server and closes both stores.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.ephemeral.Close(); err != nil {
		app.logger.Error("error closing redis store", "error", err)
	}
	if err := app.records.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initStores(ctx context.Context) error {
	ephemeral, err := redis.NewStore(ctx, redis.Config{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})
	if err != nil {
		return fmt.Errorf("failed to connect ephemeral store: %w", err)
	}
	app.ephemeral = ephemeral

	// The username filter is an optimisation; a store that cannot create it
	// (no bloom module loaded) still serves every core operation.
	if err := ephemeral.Usernames().Init(ctx); err != nil {
		app.logger.Warn("username filter unavailable", "error", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	records, err := sqlite.NewStore(dsn)
	if err != nil {
		_ = ephemeral.Close()
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.records = records

	if err := records.ApplyMigrations(); err != nil {
		_ = ephemeral.Close()
		_ = records.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}
	app.logger.Info("database migrations applied successfully")

	// User lookups sit on the validation hot path; read through the cache.
	app.users = ephemeral.NewUserCache(records.Users())
	return nil
}

func (app *Application) initServices() error {
	codec, err := jwtx.NewCodec([]byte(app.cfg.TokenKey))
	if err != nil {
		return fmt.Errorf("failed to initialize token codec: %w", err)
	}

	app.tokenService = &service.TokenService{
		Codec: codec,
		Store: app.ephemeral,
		Users: app.users,
	}
	app.registrationService = &service.RegistrationService{
		Store:     app.ephemeral,
		Users:     app.users,
		Usernames: app.ephemeral.Usernames(),
		Mail: &mail.LogSender{
			Logger:  app.logger,
			BaseURL: app.cfg.VerifyBaseURL,
		},
		Tokens: app.tokenService,
	}

	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.ephemeral, app.logger)

	router.TokenService = app.tokenService
	router.RegistrationService = app.registrationService
	router.Users = app.users
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
