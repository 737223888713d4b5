package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/followpulse/backend/internal/models"
	"github.com/anonto42/followpulse/backend/internal/repositories"
	"github.com/anonto42/followpulse/backend/pkg/protocol"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// NotificationEnqueuer accepts notifications for asynchronous persistence.
type NotificationEnqueuer interface {
	Enqueue(req models.NotificationRequest) error
}

// FollowHandler handles follow/unfollow HTTP requests
type FollowHandler struct {
	followRepository repositories.FollowRepository
	userRepository   repositories.UserRepository
	notifications    NotificationEnqueuer
	logger           *zap.Logger
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(followRepo repositories.FollowRepository, userRepo repositories.UserRepository, notifications NotificationEnqueuer, logger *zap.Logger) *FollowHandler {
	return &FollowHandler{
		followRepository: followRepo,
		userRepository:   userRepo,
		notifications:    notifications,
		logger:           logger,
	}
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/relationship/:id", h.FollowUser)
	g.DELETE("/relationship/:id", h.UnfollowUser)
}

// resolve validates the request and loads the acting user.
func (h *FollowHandler) resolve(c echo.Context) (*models.User, uint, error) {
	targetID, err := parseID(c, "id", "user ID")
	if err != nil {
		return nil, 0, err
	}

	var req models.RelationshipRequest
	if err := c.Bind(&req); err != nil {
		return nil, 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return nil, 0, echo.NewHTTPError(http.StatusBadRequest, "actorId is required")
	}
	if err := authorizeActor(c, h.userRepository, req.ActorID); err != nil {
		return nil, 0, err
	}

	ctx := c.Request().Context()
	actor, err := h.userRepository.GetUserByID(ctx, req.ActorID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, 0, echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return nil, 0, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if _, err := h.userRepository.GetUserByID(ctx, targetID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, 0, echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return nil, 0, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return actor, targetID, nil
}

// FollowUser follows a user
func (h *FollowHandler) FollowUser(c echo.Context) error {
	actor, targetID, err := h.resolve(c)
	if err != nil {
		return err
	}
	if actor.ID == targetID {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot follow yourself")
	}

	ctx := c.Request().Context()
	isFollowing, err := h.followRepository.IsFollowing(ctx, actor.ID, targetID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to follow user")
	}
	if isFollowing {
		return echo.NewHTTPError(http.StatusBadRequest, protocol.MsgAlreadyFollowing)
	}

	if err := h.followRepository.CreateFollow(ctx, actor.ID, targetID); err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return echo.NewHTTPError(http.StatusBadRequest, protocol.MsgAlreadyFollowing)
		}
		h.logger.Error("creating follow", zap.Uint("actor_id", actor.ID), zap.Uint("target_id", targetID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to follow user")
	}

	h.enqueue(models.FollowNotification(targetID, actor.Name))
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Successfully followed user"})
}

// UnfollowUser unfollows a user
func (h *FollowHandler) UnfollowUser(c echo.Context) error {
	actor, targetID, err := h.resolve(c)
	if err != nil {
		return err
	}

	if err := h.followRepository.DeleteFollow(c.Request().Context(), actor.ID, targetID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, protocol.MsgNotFollowing)
		}
		h.logger.Error("deleting follow", zap.Uint("actor_id", actor.ID), zap.Uint("target_id", targetID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to unfollow user")
	}

	h.enqueue(models.UnfollowNotification(targetID, actor.Name))
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Successfully unfollowed user"})
}

// enqueue hands the notification to the dispatch queue. The relationship
// change has already committed, so a refusal is logged rather than returned.
func (h *FollowHandler) enqueue(req models.NotificationRequest) {
	if err := h.notifications.Enqueue(req); err != nil {
		h.logger.Warn("notification not queued",
			zap.Uint("recipient_id", req.RecipientID), zap.String("kind", string(req.Kind)), zap.Error(err))
	}
}
