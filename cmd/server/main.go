package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/anonto42/followpulse/backend/internal/middleware"
	"github.com/anonto42/followpulse/backend/internal/queue"
	"github.com/anonto42/followpulse/backend/internal/realtime"
	"github.com/anonto42/followpulse/backend/internal/router"
	"github.com/anonto42/followpulse/backend/pkg/config"
	"github.com/anonto42/followpulse/backend/pkg/firebase"
	"github.com/anonto42/followpulse/backend/validators"
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := config.InitDB(ctx, cfg, logger.Named("db"))
	if err != nil {
		return err
	}
	defer db.CloseDB()

	if err := router.Migrate(db.Postgres, cfg.NotificationStore == config.StorePostgres); err != nil {
		return err
	}

	store, err := db.NotificationStore(ctx, cfg)
	if err != nil {
		return err
	}

	auth, err := authMiddleware(ctx, cfg)
	if err != nil {
		return err
	}

	dispatch := queue.New(store, logger, queue.Options{
		PersistTimeout: cfg.PersistTimeout,
		Retries:        cfg.PersistRetries,
		RetryBackoff:   cfg.PersistRetryBackoff,
	})
	registry := realtime.NewRegistry(logger)
	dispatch.AddObserver(registry)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, publishing anyway", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		dispatch.AddObserver(realtime.NewRedisPublisher(rdb, cfg.RedisChannel, logger))
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	registry.CloseOnShutdown(e.Server)
	config.SetupMiddleware(e, logger)
	router.SetupRoutes(e, router.Dependencies{
		Postgres:        db.Postgres,
		Notifications:   store,
		Queue:           dispatch,
		Registry:        registry,
		Auth:            auth,
		RateLimitPerMin: cfg.RateLimitPerMin,
		WebSocket:       realtime.WebSocketConfig{PingInterval: cfg.WSPingInterval, PongTimeout: cfg.WSPongTimeout},
		Logger:          logger,
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port), zap.String("store", cfg.NotificationStore), zap.String("auth", cfg.AuthMode))
		serverErr <- e.Start(":" + cfg.Port)
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	// Stop taking requests first. Live channels close as HTTP shutdown starts,
	// so open streams end and the queue drains on its own deadline.
	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelHTTP()
	if err := e.Shutdown(httpCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}

	queueCtx, cancelQueue := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelQueue()
	if err := dispatch.Shutdown(queueCtx); err != nil {
		logger.Error("dispatch queue shutdown", zap.Error(err))
	}
	return nil
}

func authMiddleware(ctx context.Context, cfg *config.Config) (echo.MiddlewareFunc, error) {
	switch cfg.AuthMode {
	case config.AuthJWT:
		return middleware.JWTAuthMiddleware(cfg.JWTSecret), nil
	case config.AuthFirebase:
		app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			return nil, err
		}
		return middleware.FirebaseAuthMiddleware(app.AuthClient), nil
	default:
		return nil, nil
	}
}
