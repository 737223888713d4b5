package realtime

import "github.com/labstack/echo/v4"

// CallerFunc resolves the authenticated caller of a request. ok is false when
// the route runs without authentication.
type CallerFunc func(c echo.Context) (id uint, ok bool, err error)

const msgForeignRecipient = "Cannot subscribe to another user's notifications"

func resolveCaller(fn CallerFunc, c echo.Context) (uint, bool, error) {
	if fn == nil {
		return 0, false, nil
	}
	return fn(c)
}
