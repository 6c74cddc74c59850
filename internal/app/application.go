package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"rollcall/internal/api"
	"rollcall/internal/auth"
	"rollcall/internal/config"
	"rollcall/internal/database"
	"rollcall/internal/hub"
	"rollcall/internal/router"
	"rollcall/internal/session"
	"rollcall/internal/store"
	"rollcall/internal/websocket"
	pkgdatabase "rollcall/pkg/database"
)

const (
	shutdownTimeout     = 30 * time.Second
	rateCleanupInterval = 5 * time.Minute
)

// Application owns every component and their lifecycle.
type Application struct {
	config      *config.Config
	logger      zerolog.Logger
	dbManager   *database.Manager
	redisClient *redis.Client
	registry    *websocket.Registry
	router      *router.Router
	hub         *hub.Hub
	httpServer  *http.Server
}

// NewApplication connects to SQLite and Redis and wires the components.
// Initialization order: Database → Redis → Coordinator → Router → Hub → HTTP.
func NewApplication(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbManager, err := database.NewManager(cfg.DatabaseSettings(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	migrations := pkgdatabase.NewMigrationManager(dbManager.GetDB(), pkgdatabase.EmbeddedMigrations())
	if err := migrations.ApplyMigrations(); err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	if err := migrations.ValidateSchema(); err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("database schema is invalid: %w", err)
	}
	logger.Info().Str("path", cfg.Database.Path).Msg("database ready")

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	redisClient, err := store.Connect(connectCtx, &redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis ready")

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		_ = redisClient.Close()
		_ = dbManager.Close()
		return nil, err
	}

	sessions := store.NewRedisStore(redisClient, logger)
	coordinator := session.NewCoordinator(sessions, dbManager, dbManager, cfg.Attendance.SessionTTL, logger)
	eventRouter := router.NewRouter(coordinator, cfg.Attendance.RateLimit, logger)
	registry := websocket.NewRegistry(logger)
	messageHub := hub.NewHub(registry, eventRouter, logger)

	apiServer := api.NewServer(api.Dependencies{
		Database:    dbManager,
		Store:       sessions,
		Coordinator: coordinator,
		Broadcaster: messageHub,
		Tokens:      tokens,
		Stats:       registry,
		BcryptCost:  cfg.Auth.BcryptCost,
	}, logger)

	wsHandler := websocket.NewHandler(registry, tokens, messageHub, websocket.HandlerConfig{
		ReadTimeout:    cfg.WebSocket.ReadTimeout,
		PingInterval:   cfg.WebSocket.PingInterval,
		WriteTimeout:   cfg.WebSocket.WriteTimeout,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)
	mux.Handle("/", apiServer)

	// No WriteTimeout: it would cut hijacked websocket connections.
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
	}

	return &Application{
		config:      cfg,
		logger:      logger,
		dbManager:   dbManager,
		redisClient: redisClient,
		registry:    registry,
		router:      eventRouter,
		hub:         messageHub,
		httpServer:  httpServer,
	}, nil
}

// Run serves until ctx is cancelled or the listener fails, then shuts the
// HTTP server down. Call Stop afterwards to release the stores.
func (app *Application) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	return app.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (app *Application) Serve(ctx context.Context, listener net.Listener) error {
	if err := app.hub.Start(ctx); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to start hub: %w", err)
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		app.logger.Info().Str("addr", listener.Addr().String()).Msg("rollcall listening")
		if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		ticker := time.NewTicker(rateCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				app.router.CleanupLimits()
			case <-ctx.Done():
				return nil
			}
		}
	})

	group.Go(func() error {
		<-ctx.Done()
		app.logger.Info().Msg("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP shutdown: %w", err)
		}
		return nil
	})

	return group.Wait()
}

// Stop closes client connections and releases the stores. It is safe to call
// after Run returns.
func (app *Application) Stop() error {
	if app.hub.IsRunning() {
		if err := app.hub.Stop(); err != nil {
			app.logger.Warn().Err(err).Msg("hub shutdown error")
		}
	}

	for _, conn := range app.registry.GetAllConnections() {
		_ = conn.Close()
	}

	var errs []error
	if err := app.redisClient.Close(); err != nil {
		errs = append(errs, fmt.Errorf("redis close: %w", err))
	}
	if err := app.dbManager.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database close: %w", err))
	}

	app.logger.Info().Msg("rollcall stopped")
	return errors.Join(errs...)
}

// Addr is the configured listen address.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}
