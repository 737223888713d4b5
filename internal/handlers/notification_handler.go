package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/anonto42/followpulse/backend/internal/models"
	"github.com/anonto42/followpulse/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
	userRepository         repositories.UserRepository
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifRepo repositories.NotificationRepository, userRepo repositories.UserRepository) *NotificationHandler {
	return &NotificationHandler{
		notificationRepository: notifRepo,
		userRepository:         userRepo,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/users/:id/notifications", h.GetNotifications)
	g.GET("/users/:id/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/users/:id/notifications/read-all", h.MarkAllAsRead)
	g.PATCH("/notifications/:id/read", h.MarkAsRead)
}

// recipient parses :id and checks it against the authenticated caller.
func (h *NotificationHandler) recipient(c echo.Context) (uint, error) {
	userID, err := parseID(c, "id", "user ID")
	if err != nil {
		return 0, err
	}
	if err := authorizeActor(c, h.userRepository, userID); err != nil {
		return 0, err
	}
	return userID, nil
}

// GetNotifications returns the recipient's most recent notifications
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	userID, err := h.recipient(c)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > repositories.DefaultListLimit {
		limit = repositories.DefaultListLimit
	}

	ctx := c.Request().Context()
	notifications, err := h.notificationRepository.ListByRecipient(ctx, userID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch notifications")
	}
	unread, err := h.notificationRepository.CountUnread(ctx, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch notifications")
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}

	return success(c, echo.Map{"notifications": notifications, "unreadCount": unread})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	userID, err := h.recipient(c)
	if err != nil {
		return err
	}

	count, err := h.notificationRepository.CountUnread(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch unread count")
	}
	return success(c, echo.Map{"count": count})
}

// MarkAsRead marks a notification as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	notifID, err := parseID(c, "id", "notification ID")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	existing, err := h.notificationRepository.GetByID(ctx, notifID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Notification not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to mark notification as read")
	}
	if err := authorizeActor(c, h.userRepository, existing.RecipientID); err != nil {
		return err
	}

	n, err := h.notificationRepository.MarkRead(ctx, notifID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Notification not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to mark notification as read")
	}
	return success(c, n)
}

// MarkAllAsRead marks all notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	userID, err := h.recipient(c)
	if err != nil {
		return err
	}

	updated, err := h.notificationRepository.MarkAllRead(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to mark notifications as read")
	}
	return success(c, echo.Map{"updated": updated})
}
