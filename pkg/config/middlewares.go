package config

import (
	"github.com/anonto42/followpulse/backend/internal/middleware"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// SetupMiddleware installs the global middleware chain.
func SetupMiddleware(e *echo.Echo, logger *zap.Logger) {
	e.Use(middleware.RequestLogger(logger.Named("http")))
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
}
