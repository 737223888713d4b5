package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

func HealthCheck(e echo.Context) error {
	return e.JSON(http.StatusOK, map[string]string{
		"status":    "OK",
		"service":   "followpulse",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
