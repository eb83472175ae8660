package app

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/telewallet/telewallet/internal/wallet/http"
	"github.com/telewallet/telewallet/internal/wallet/initdata"
	"github.com/telewallet/telewallet/internal/wallet/service"
	"github.com/telewallet/telewallet/internal/wallet/store"
	"github.com/telewallet/telewallet/internal/wallet/store/drivers/sqlite"
	"github.com/telewallet/telewallet/pkg/jwtx"
	"github.com/telewallet/telewallet/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the wallet service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	sessions *jwtx.Signer

	authService   *service.AuthService
	pinService    *service.PinService
	walletService *service.WalletService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("BOT_TOKEN is required")
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "wallet-api",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	sessions, err := jwtx.NewSigner(app.sessionSecret(), "wallet-api", cfg.SessionTTL)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize session signer: %w", err)
	}
	app.sessions = sessions

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("wallet service starting", "port", app.cfg.Port, "version", BuildVersion)

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

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down wallet service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("wallet service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(sqlite.FileDSN(app.cfg.DatabaseFile))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.authService = &service.AuthService{
		Store:    app.db,
		Verifier: initdata.NewVerifier(app.cfg.BotToken, app.cfg.AuthMaxAge),
		Sessions: app.sessions,
	}
	app.pinService = &service.PinService{
		Store:        app.db,
		MaxAttempts:  app.cfg.PinMaxAttempts,
		LockDuration: app.cfg.PinLockDuration,
	}
	app.walletService = &service.WalletService{
		Store:      app.db,
		SeedSecret: app.seedSecret(),
	}
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.sessions,
		app.cfg.CorsOrigin,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.AuthService = app.authService
	router.PinService = app.pinService
	router.WalletService = app.walletService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// sessionSecret returns the configured session signing secret, or one derived
// from the bot token so a single-secret deployment still works. The
// derivation is domain-separated from seedSecret.
func (app *Application) sessionSecret() []byte {
	if app.cfg.SessionSecret != "" {
		return []byte(app.cfg.SessionSecret)
	}
	app.logger.Warn("SESSION_SECRET not set, deriving from BOT_TOKEN")
	sum := sha256.Sum256([]byte("session:" + app.cfg.BotToken))
	return sum[:]
}

func (app *Application) seedSecret() []byte {
	if app.cfg.SeedSecret != "" {
		return []byte(app.cfg.SeedSecret)
	}
	app.logger.Warn("SEED_SECRET not set, deriving from BOT_TOKEN")
	sum := sha256.Sum256([]byte("seed:" + app.cfg.BotToken))
	return sum[:]
}
