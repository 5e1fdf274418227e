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

	goredis "github.com/redis/go-redis/v9"

	httpapi "github.com/aussiebroadwan/tokenguard/internal/auth/http"
	"github.com/aussiebroadwan/tokenguard/internal/auth/metrics"
	"github.com/aussiebroadwan/tokenguard/internal/auth/service"
	"github.com/aussiebroadwan/tokenguard/internal/auth/store"
	"github.com/aussiebroadwan/tokenguard/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/tokenguard/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/tokenguard/pkg/cryptox"
	"github.com/aussiebroadwan/tokenguard/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db     store.Store
	tokens store.Tokens
	redis  *goredis.Client // nil unless TokenStore is redis

	metrics *metrics.Metrics
	manager *service.Manager

	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "tokenguard",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: metrics.New(),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initTokenStore(); err != nil {
		app.Close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"token_store", app.cfg.TokenStore,
		"guards", app.manager.Names(),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		app.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// Shutdown gracefully shuts down the application
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

	app.housekeepingService.Stop()

	if err := app.Close(); err != nil {
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// Close releases the database and token store. Shutdown calls it after the
// server and housekeeping have stopped.
func (app *Application) Close() error {
	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
			errs = append(errs, err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	db, err := OpenDatabase(app.cfg.DatabaseFile)
	if err != nil {
		return err
	}
	app.db = db

	app.logger.Info("database migrations applied successfully")
	return nil
}

// OpenDatabase opens the SQLite file in WAL mode and applies migrations.
func OpenDatabase(file string) (*sqlite.Store, error) {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", file)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return db, nil
}

// initTokenStore selects where token records live. Users always stay in
// SQLite.
func (app *Application) initTokenStore() error {
	tokens, client, err := OpenTokenStore(context.Background(), app.cfg, app.db)
	if err != nil {
		return err
	}
	app.tokens = tokens
	app.redis = client
	if client != nil {
		app.logger.Info("redis token store connected", "addr", app.cfg.RedisAddr, "db", app.cfg.RedisDB)
	}
	return nil
}

// OpenTokenStore returns the token backend named by cfg.TokenStore. The redis
// client is nil for the sqlite backend; otherwise the caller closes it.
func OpenTokenStore(ctx context.Context, cfg Config, db store.Store) (store.Tokens, *goredis.Client, error) {
	switch cfg.TokenStore {
	case "", TokenStoreSQLite:
		return db.Tokens(), nil, nil
	case TokenStoreRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		tokens, err := redis.NewTokenStore(ctx, client)
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to initialize redis token store: %w", err)
		}
		return tokens, client, nil
	default:
		return nil, nil, fmt.Errorf("unknown token store %q (want %s or %s)", cfg.TokenStore, TokenStoreSQLite, TokenStoreRedis)
	}
}

// initServices loads guard configuration and builds every guard up front so a
// broken configuration fails at startup.
func (app *Application) initServices() error {
	guards, err := LoadGuards(app.cfg.GuardsFile, app.cfg.DefaultGuard)
	if err != nil {
		return fmt.Errorf("failed to load guard configuration: %w", err)
	}

	app.manager = service.NewManager(guards, app.db.Users(), app.tokens,
		service.WithMetrics(app.metrics),
	)
	if err := app.manager.Warm(); err != nil {
		return fmt.Errorf("invalid guard configuration: %w", err)
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.tokens,
		app.logger,
		app.metrics,
		app.cfg.HousekeepingInterval,
	)
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	checks := map[string]httpapi.Pinger{"database": app.db}
	if app.redis != nil {
		checks["tokens"] = app.tokens
	}

	router := httpapi.NewRouter(
		app.manager,
		app.metrics,
		checks,
		app.cfg.Limits,
		BuildVersion,
		app.logger,
	)
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// Handler exposes the configured router, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }
