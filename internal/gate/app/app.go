package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/gatekeeper/internal/gate/http"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store"
	redisdriver "github.com/aussiebroadwan/gatekeeper/internal/gate/store/drivers/redis"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store/drivers/sqlitekv"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/upstream"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the gatekeeper with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	cache store.TokenCache
	trust jwtx.TrustMaterial

	// Services
	lifecycleService    *service.LifecycleService
	housekeepingService *service.HousekeepingService // Optional: only with the sqlite driver

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gatekeeper",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	trust, err := loadTrustMaterial(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load trust material: %w", err)
	}
	app.trust = trust

	if err := app.initCache(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.cache.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

func validate(cfg Config) error {
	switch {
	case cfg.ClientID == "":
		return errors.New("GATE_CLIENT_ID is required")
	case cfg.ClientSecret == "":
		return errors.New("GATE_CLIENT_SECRET is required")
	case cfg.AuthorizeEndpoint == "":
		return errors.New("GATE_AUTHORIZE_ENDPOINT is required")
	case cfg.TokenEndpoint == "":
		return errors.New("GATE_TOKEN_ENDPOINT is required")
	}
	return nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	if app.housekeepingService != nil {
		app.housekeepingService.Start()
	}

	app.logger.Info("gatekeeper starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"cache_driver", app.cfg.CacheDriver,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gatekeeper...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.housekeepingService != nil {
		app.housekeepingService.Stop()
	}

	// Close the token cache
	if err := app.cache.Close(); err != nil {
		app.logger.Error("error closing token cache", "error", err)
		return err
	}

	app.logger.Info("gatekeeper stopped")
	return nil
}

// initCache initializes the configured token cache backend
func (app *Application) initCache() error {
	switch app.cfg.CacheDriver {
	case "redis":
		cache, err := redisdriver.NewStore(app.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to initialize redis cache: %w", err)
		}
		app.cache = cache

	case "sqlite":
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.SQLiteFile)
		cache, err := sqlitekv.NewStore(dsn)
		if err != nil {
			return fmt.Errorf("failed to initialize sqlite cache: %w", err)
		}
		if err := cache.ApplyMigrations(); err != nil {
			_ = cache.Close()
			return fmt.Errorf("failed to apply cache migrations: %w", err)
		}
		app.cache = cache

		// Only the embedded backend needs an expiry sweeper; redis does its
		// own key expiry server-side.
		app.housekeepingService = service.NewHousekeepingService(
			cache,
			app.logger,
			app.cfg.HousekeepingInterval,
		)

	default:
		return fmt.Errorf("unknown cache driver %q (want redis or sqlite)", app.cfg.CacheDriver)
	}

	return nil
}

// initServices initializes the token lifecycle orchestrator
func (app *Application) initServices() error {
	verifier, err := jwtx.New(app.trust, app.cfg.Algorithms)
	if err != nil {
		return fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	authorizeURL, err := service.BuildAuthorizeURL(app.cfg.AuthorizeEndpoint, app.cfg.ClientID)
	if err != nil {
		return err
	}

	app.lifecycleService = &service.LifecycleService{
		Verifier: verifier,
		Cache:    app.cache,
		Upstream: &upstream.TokenEndpointClient{
			Endpoint:     app.cfg.TokenEndpoint,
			ClientID:     app.cfg.ClientID,
			ClientSecret: app.cfg.ClientSecret,
		},
		AuthorizeURL: authorizeURL,
	}
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.trust,
		BuildVersion,
		app.cache,
		app.cfg.CookieName,
		app.cfg.Env != "dev", // Secure cookies everywhere but local dev
		app.logger,
	)

	router.LifecycleService = app.lifecycleService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
