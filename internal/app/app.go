package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/causerie/causerie-server/internal/auth"
	"github.com/causerie/causerie-server/internal/config"
	"github.com/causerie/causerie-server/internal/core"
	"github.com/causerie/causerie-server/internal/janitor"
	"github.com/causerie/causerie-server/internal/store"
	"github.com/causerie/causerie-server/internal/store/sqlite"
	transporthttp "github.com/causerie/causerie-server/internal/transport/http"
	"github.com/causerie/causerie-server/internal/utils"
)

// App wires together the store, hub, janitors, and transport.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	reaper          *janitor.Reaper
	autoMuter       *janitor.AutoMuter
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	instanceID := cfg.InstanceID
	if instanceID == "" {
		instanceID = utils.NewInstanceID()
	}
	logger.Info().Str("instance_id", instanceID).Msg("instance identity")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	hub := core.NewHub(st, instanceID, logger)
	server := transporthttp.NewServer(hub, authService, st, cfg, logger)

	// The sqlite store doubles as the session factory for the janitors.
	reaper := janitor.NewReaper(st, cfg.ReaperInterval, cfg.StaleTimeout, logger)
	autoMuter := janitor.NewAutoMuter(st, hub, cfg.AutoMuteInterval, cfg.InactivityThreshold, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		reaper:          reaper,
		autoMuter:       autoMuter,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and background services, blocking until
// context cancellation or a fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.reaper.Run(ctx)
	go a.autoMuter.Run(ctx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
