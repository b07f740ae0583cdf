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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	httpAdapter "github.com/qaiserfcc/helpDesk-sub001/internal/adapters/primary/http"
	mw "github.com/qaiserfcc/helpDesk-sub001/internal/adapters/primary/http/middleware"
	"github.com/qaiserfcc/helpDesk-sub001/internal/adapters/primary/websocket"
	"github.com/qaiserfcc/helpDesk-sub001/internal/adapters/secondary/email"
	"github.com/qaiserfcc/helpDesk-sub001/internal/adapters/secondary/postgres"
	"github.com/qaiserfcc/helpDesk-sub001/internal/adapters/secondary/redisstore"
	"github.com/qaiserfcc/helpDesk-sub001/internal/auth"
	"github.com/qaiserfcc/helpDesk-sub001/internal/config"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/ports"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/services"
	"github.com/qaiserfcc/helpDesk-sub001/internal/infrastructure/logging"
	"github.com/qaiserfcc/helpDesk-sub001/internal/infrastructure/metrics"
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

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Database
	if err := postgres.RunMigrations(cfg.Database.MigrationsPath, cfg.Database.URL, logger); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connection established")

	// 4. Optional Redis
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisstore.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		logger.Info("redis connection established", "addr", cfg.Redis.Addr)
	}

	// 5. Metrics
	registry := metrics.NewRegistry()
	realtimeMetrics := metrics.NewRealtime(registry)
	httpMetrics := metrics.NewHTTP(registry)

	// 6. Credentials
	tokens := auth.NewTokenAuthority(auth.TokenAuthorityConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTokenTTL,
		RefreshTTL:    cfg.JWT.RefreshTokenTTL,
	})

	var ledger ports.RefreshLedger = redisstore.NewMemoryLedger()
	if redisClient != nil {
		ledger = redisstore.NewLedger(redisClient)
	}

	// 7. Dependency Injection (Wiring the Hexagon)
	userRepo := postgres.NewUserRepository(pool)
	ticketRepo := postgres.NewTicketRepository(pool)
	activityRepo := postgres.NewActivityRepository(pool)
	appliedRepo := postgres.NewAppliedWriteRepository(pool)
	txManager := postgres.NewTransactionManager(pool)

	notifier := email.NewLogNotifier(userRepo, logger)

	// The hub authorizes ticket subscriptions through the ticket service,
	// which in turn publishes into the hub. Bind it after construction.
	authorizer := &lateAuthorizer{}
	hub := websocket.NewHub(websocket.HubConfig{PublishBuffer: cfg.WebSocket.PublishBuffer}, authorizer, realtimeMetrics, logger)

	var publisher ports.EventPublisher = hub
	var relay *redisstore.Relay
	if redisClient != nil {
		relay = redisstore.NewRelay(redisClient, cfg.Redis.Channel, hub, cfg.WebSocket.PublishBuffer, realtimeMetrics, logger)
		publisher = relay
	}

	authService := services.NewAuthService(userRepo, tokens, ledger, logger)
	ticketService := services.NewTicketService(ticketRepo, activityRepo, userRepo, txManager, notifier, publisher, logger)
	writeService := services.NewWriteApplyService(ticketService, appliedRepo, txManager, logger)
	authorizer.bind(ticketService)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	if relay != nil {
		if err := relay.Start(hubCtx); err != nil {
			logger.Error("failed to start event relay", "error", err)
			os.Exit(1)
		}
		defer relay.Close()
	}

	// 8. Rate Limiters
	var generalRateLimiter, authRateLimiter *mw.RateLimiter
	var identityLimiter *mw.RateLimitByKey
	if cfg.RateLimit.Enabled {
		generalRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
		defer generalRateLimiter.Close()

		authRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.AuthRPS,
			BurstSize:         cfg.RateLimit.AuthBurst,
			CleanupInterval:   time.Minute,
			TTL:               5 * time.Minute,
		})
		defer authRateLimiter.Close()

		identityLimiter = mw.NewRateLimitByKey(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.BurstSize)
		defer identityLimiter.Close()
	}

	// 9. Handlers
	errorHandler := httpAdapter.NewErrorHandler(logger)

	checkers := map[string]httpAdapter.HealthChecker{"database": pool}
	if redisClient != nil {
		checkers["redis"] = redisstore.Pinger{Client: redisClient}
	}

	deps := routerDeps{
		cfg:          cfg,
		logger:       logger,
		registry:     registry,
		httpMetrics:  httpMetrics,
		tokens:       tokens,
		identities:   authService,
		general:      generalRateLimiter,
		authLimiter:  authRateLimiter,
		perIdentity:  identityLimiter,
		authHandler:  httpAdapter.NewAuthHandler(authService, errorHandler),
		ticket:       httpAdapter.NewTicketHandler(ticketService, errorHandler, logger),
		syncHandler:  httpAdapter.NewSyncHandler(writeService, errorHandler, logger),
		wsHandler:    httpAdapter.NewWebSocketHandler(hub, tokens, authService, cfg, realtimeMetrics, logger),
		healthHandle: httpAdapter.NewHealthHandler(cfg.App.Version, checkers),
	}

	// 10. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      newRouter(deps),
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

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Drain detached notifications before the pool closes.
	ticketService.Shutdown()
	stopHub()

	logger.Info("server shutdown complete")
}

type routerDeps struct {
	cfg          *config.Config
	logger       *slog.Logger
	registry     *prometheus.Registry
	httpMetrics  *metrics.HTTP
	tokens       ports.TokenVerifier
	identities   ports.IdentityStore
	general      *mw.RateLimiter
	authLimiter  *mw.RateLimiter
	perIdentity  *mw.RateLimitByKey
	authHandler  *httpAdapter.AuthHandler
	ticket       *httpAdapter.TicketHandler
	syncHandler  *httpAdapter.SyncHandler
	wsHandler    *httpAdapter.WebSocketHandler
	healthHandle *httpAdapter.HealthHandler
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(d.logger))
	r.Use(mw.RecoveryLogger(d.logger))
	r.Use(mw.Metrics(d.httpMetrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Probe paths sit outside /api/v1 and outside rate limiting.
	d.healthHandle.RegisterRoutes(r)
	r.Handle("/metrics", metrics.Handler(d.registry))

	r.Route("/api/v1", func(r chi.Router) {
		if d.general != nil {
			r.Use(d.general.Middleware)
		}

		// Public auth routes with stricter rate limiting
		r.Group(func(r chi.Router) {
			if d.authLimiter != nil {
				r.Use(d.authLimiter.Middleware)
			}
			r.Route("/auth", d.authHandler.RegisterRoutes)
		})

		// Credentials are checked inside the handshake.
		r.Get("/ws", d.wsHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(mw.SessionGuard(d.tokens, d.identities, d.logger))
			if d.perIdentity != nil {
				r.Use(d.perIdentity.PerIdentity)
			}
			r.Route("/tickets", d.ticket.RegisterRoutes)
			r.Route("/sync", d.syncHandler.RegisterRoutes)
		})
	})

	return r
}
