package handlers

import (
	"net/http"
	"strconv"

	"github.com/anonto42/followpulse/backend/internal/models"
	"github.com/anonto42/followpulse/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// authenticatedUserID resolves the caller set by the auth middleware, if any.
// ok is false when the route runs without authentication.
func authenticatedUserID(c echo.Context, users repositories.UserRepository) (id uint, ok bool, err error) {
	if claims, isClaims := c.Get("user").(*models.JwtCustomClaims); isClaims && claims != nil {
		return claims.UserID, true, nil
	}
	if uid, isUID := c.Get("firebaseUID").(string); isUID && uid != "" {
		user, err := users.GetUserByFirebaseUID(c.Request().Context(), uid)
		if err != nil {
			return 0, true, echo.NewHTTPError(http.StatusUnauthorized, "User not registered")
		}
		return user.ID, true, nil
	}
	return 0, false, nil
}

// CallerResolver exposes the authenticated caller lookup to routes outside
// this package, such as the push channels.
func CallerResolver(users repositories.UserRepository) func(echo.Context) (uint, bool, error) {
	return func(c echo.Context) (uint, bool, error) {
		return authenticatedUserID(c, users)
	}
}

// authorizeActor rejects requests acting on behalf of someone other than the
// authenticated caller.
func authorizeActor(c echo.Context, users repositories.UserRepository, actorID uint) error {
	callerID, ok, err := authenticatedUserID(c, users)
	if err != nil {
		return err
	}
	if ok && callerID != actorID {
		return echo.NewHTTPError(http.StatusForbidden, "Cannot act on behalf of another user")
	}
	return nil
}

func parseID(c echo.Context, name, label string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+label)
	}
	return uint(id), nil
}

func success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": data})
}
