package handlers

import (
	"net/http"

	"github.com/anonto42/followpulse/backend/internal/queue"
	"github.com/labstack/echo/v4"
)

// QueueStatusReader exposes the dispatch queue's observable state.
type QueueStatusReader interface {
	Status() queue.Status
}

// QueueStatus returns {queueLength, processing} for the dispatch queue.
func QueueStatus(q QueueStatusReader) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, q.Status())
	}
}
