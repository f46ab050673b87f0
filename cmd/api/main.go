package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	httpAdapter "github.com/lorrc/support-chat-gateway/internal/adapters/primary/http"
	mw "github.com/lorrc/support-chat-gateway/internal/adapters/primary/http/middleware"
	"github.com/lorrc/support-chat-gateway/internal/adapters/primary/websocket"
	"github.com/lorrc/support-chat-gateway/internal/adapters/secondary/assignment"
	"github.com/lorrc/support-chat-gateway/internal/adapters/secondary/postgres"
	"github.com/lorrc/support-chat-gateway/internal/auth"
	"github.com/lorrc/support-chat-gateway/internal/config"
	"github.com/lorrc/support-chat-gateway/internal/core/services"
	"github.com/lorrc/support-chat-gateway/internal/infrastructure/logging"
	"github.com/lorrc/support-chat-gateway/internal/infrastructure/metrics"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})
	slog.SetDefault(logger)

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	// 3. Initialize Database Pool
	ctx := context.Background()
	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connection established")

	if cfg.Database.AutoMigrate {
		if err := runMigrations(cfg.Database); err != nil {
			logger.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("database migrations applied")
	}

	// 4. Metrics
	registry := metrics.NewRegistry(nil)

	// 5. Secondary adapters
	userRepo := postgres.NewUserRepository(pool)
	conversationRepo := postgres.NewConversationRepository(pool)
	notificationRepo := postgres.NewNotificationRepository(pool)
	txManager := postgres.NewTransactionManager(pool)

	// No connection survives a restart.
	if reset, err := userRepo.ResetPresence(ctx); err != nil {
		logger.Error("failed to reset presence", "error", err)
		os.Exit(1)
	} else if reset > 0 {
		logger.Info("stale presence reset", "users", reset)
	}
	assignmentClient := assignment.NewClient(assignment.Config{
		BaseURL:    cfg.Assignment.BaseURL,
		Timeout:    cfg.Assignment.Timeout,
		RetryCount: cfg.Assignment.RetryCount,
		APIKey:     cfg.Assignment.APIKey,
	}, logger)

	// 6. Real-time core (Wiring the Hexagon)
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL, auth.WithIssuer(cfg.JWT.Issuer))
	connections := services.NewConnectionRegistry(cfg.Registry.ShardCount)
	hub := websocket.NewHub(logger)

	fanout := services.NewNotificationFanout(services.NotificationFanoutDeps{
		Conversations: conversationRepo,
		Notifications: notificationRepo,
		Assignment:    assignmentClient,
		Connections:   connections,
		Emitter:       hub,
		Metrics:       registry,
		Concurrency:   cfg.Fanout.Concurrency,
		Timeout:       cfg.Fanout.Timeout,
		Logger:        logger,
	})
	rooms := services.NewRoomManager(services.RoomManagerDeps{
		Conversations: conversationRepo,
		Users:         userRepo,
		Assignment:    assignmentClient,
		Announcer:     fanout,
		Emitter:       hub,
		ShardCount:    cfg.Registry.ShardCount,
		Logger:        logger,
	})
	gateway := services.NewGatewayOrchestrator(services.GatewayDeps{
		Authenticator: services.NewSessionAuthenticator(tokenManager),
		Registry:      connections,
		Rooms:         rooms,
		Announcer:     fanout,
		Users:         userRepo,
		Conversations: conversationRepo,
		Emitter:       hub,
		Metrics:       registry,
		Logger:        logger,
	})

	notificationService := services.NewNotificationService(notificationRepo, txManager)
	conversationService := services.NewConversationService(conversationRepo, rooms)

	// 7. Primary adapters
	var rateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
		defer rateLimiter.Stop()
	}

	errorHandler := httpAdapter.NewErrorHandler(logger)
	wsHandler := httpAdapter.NewWebSocketHandler(hub, gateway, httpAdapter.WebSocketConfig{
		AllowedOrigins:  cfg.WebSocket.AllowedOrigins,
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		IsDevelopment:   cfg.IsDevelopment(),
		Client: websocket.ClientConfig{
			SendBufferSize: cfg.WebSocket.SendBufferSize,
			MaxMessageSize: cfg.WebSocket.MaxMessageSize,
			PingInterval:   cfg.WebSocket.PingInterval,
			PongWait:       cfg.WebSocket.PongWait,
			WriteWait:      cfg.WebSocket.WriteWait,
			InboundRPS:     cfg.RateLimit.InboundRPS,
			InboundBurst:   cfg.RateLimit.InboundBurst,
		},
	}, logger)

	router := httpAdapter.NewRouter(httpAdapter.RouterDeps{
		Verifier:      tokenManager,
		WebSocket:     wsHandler,
		Notifications: httpAdapter.NewNotificationHandler(notificationService, errorHandler, logger),
		Conversations: httpAdapter.NewConversationHandler(conversationService, errorHandler, logger),
		Assignment:    httpAdapter.NewAssignmentHandler(fanout, errorHandler, logger),
		Me:            httpAdapter.NewMeHandler(connections, errorHandler, logger),
		UserStatus:    httpAdapter.NewUserStatusHandler(connections, userRepo, errorHandler, logger),
		Health:        httpAdapter.NewHealthHandler(pool, connections, cfg.App.Version),
		Metrics:       registry.Handler(),
		HTTPMetrics:   registry,
		RateLimiter:   rateLimiter,
		CORSOrigins:   cfg.Server.CORSOrigins,
		Logger:        logger,
	})

	// 8. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by the server.
	hub.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	// Let every connection finish Disconnect before the pool closes.
	if err := hub.Wait(shutdownCtx); err != nil {
		logger.Warn("websocket connections still draining at shutdown", "error", err)
	}

	logger.Info("server shutdown complete")
}

func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func runMigrations(cfg config.DatabaseConfig) error {
	m, err := migrate.New(cfg.MigrationsPath, cfg.URL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
