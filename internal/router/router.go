package router

import (
	"fmt"

	"github.com/anonto42/followpulse/backend/internal/handlers"
	"github.com/anonto42/followpulse/backend/internal/middleware"
	"github.com/anonto42/followpulse/backend/internal/models"
	"github.com/anonto42/followpulse/backend/internal/queue"
	"github.com/anonto42/followpulse/backend/internal/realtime"
	"github.com/anonto42/followpulse/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies are the long-lived components the routes are built from.
type Dependencies struct {
	Postgres      *gorm.DB
	Notifications repositories.NotificationRepository
	Queue         *queue.DispatchQueue
	Registry      *realtime.Registry
	// Auth guards the /api group. Nil leaves it open.
	Auth            echo.MiddlewareFunc
	RateLimitPerMin int
	WebSocket       realtime.WebSocketConfig
	Logger          *zap.Logger
}

// Migrate creates the relational tables. The notifications table is only
// created when PostgreSQL is the notification store.
func Migrate(db *gorm.DB, notificationsInPostgres bool) error {
	tables := []any{&models.User{}, &models.Follow{}}
	if notificationsInPostgres {
		tables = append(tables, &models.Notification{})
	}
	if err := db.AutoMigrate(tables...); err != nil {
		return fmt.Errorf("auto migrating models: %w", err)
	}
	return nil
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, deps Dependencies) {
	logger := deps.Logger.Named("router")

	e.GET("/api/health", handlers.HealthCheck)
	e.GET("/api/queue/status", handlers.QueueStatus(deps.Queue))

	userRepo := repositories.NewPostgresUserRepository(deps.Postgres)
	followRepo := repositories.NewPostgresFollowRepository(deps.Postgres)
	caller := handlers.CallerResolver(userRepo)

	var guards []echo.MiddlewareFunc
	if deps.Auth != nil {
		guards = append(guards, deps.Auth)
		logger.Info("authentication applied to /api group and /ws")
	}

	// Push channels only serve the authenticated caller's own notifications.
	ws := realtime.NewWebSocketHandler(deps.Registry, deps.Logger, deps.WebSocket).WithCaller(caller)
	e.GET("/ws", ws.Handle, guards...)

	api := e.Group("/api", middleware.RateLimit(deps.RateLimitPerMin, deps.Logger.Named("ratelimit")))
	api.Use(guards...)

	sse := realtime.NewStreamHandler(deps.Registry, deps.Logger, 0).WithCaller(caller)
	api.GET("/notifications/events", sse.Handle)

	handlers.NewUserHandler(userRepo, followRepo).RegisterUserRoutes(api)
	handlers.NewFollowHandler(followRepo, userRepo, deps.Queue, deps.Logger.Named("relationship")).RegisterFollowRoutes(api)
	handlers.NewNotificationHandler(deps.Notifications, userRepo).RegisterNotificationRoutes(api)

	logger.Info("routes configured")
}
