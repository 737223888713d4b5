package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/anonto42/followpulse/backend/internal/models"
	"github.com/anonto42/followpulse/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	userRepository   repositories.UserRepository
	followRepository repositories.FollowRepository
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository, followRepo repositories.FollowRepository) *UserHandler {
	return &UserHandler{userRepository: userRepo, followRepository: followRepo}
}

// RegisterUserRoutes registers user directory routes
func (h *UserHandler) RegisterUserRoutes(g *echo.Group) {
	g.GET("/users", h.ListUsers)
	g.GET("/users/:id", h.GetUser)
}

func (h *UserHandler) withCounts(c echo.Context, user models.User) (models.UserWithCounts, error) {
	ctx := c.Request().Context()
	followers, err := h.followRepository.GetFollowersCount(ctx, user.ID)
	if err != nil {
		return models.UserWithCounts{}, err
	}
	following, err := h.followRepository.GetFollowingCount(ctx, user.ID)
	if err != nil {
		return models.UserWithCounts{}, err
	}
	return models.UserWithCounts{User: user, FollowersCount: followers, FollowingCount: following}, nil
}

// ListUsers returns every user with follower/following counts
func (h *UserHandler) ListUsers(c echo.Context) error {
	users, err := h.userRepository.GetUsers(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch users")
	}

	out := make([]models.UserWithCounts, 0, len(users))
	for _, u := range users {
		withCounts, err := h.withCounts(c, u)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch users")
		}
		out = append(out, withCounts)
	}
	return success(c, out)
}

// GetUser returns one user; with ?currentUserId= it also reports whether that user follows them
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := parseID(c, "id", "user ID")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	user, err := h.userRepository.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch user")
	}

	out, err := h.withCounts(c, *user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch user")
	}

	if raw := c.QueryParam("currentUserId"); raw != "" {
		currentID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid currentUserId")
		}
		following, err := h.followRepository.IsFollowing(ctx, uint(currentID), user.ID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch user")
		}
		out.IsFollowing = &following
	}
	return success(c, out)
}
