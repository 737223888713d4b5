package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/anonto42/followpulse/backend/pkg/protocol"
)

// HTTPError represents a non-2xx HTTP response from the API.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Is makes errors.Is(err, protocol.ErrAlreadySettled) true for the 400
// responses the relationship API returns when nothing had to change.
func (e *HTTPError) Is(target error) bool {
	return target == protocol.ErrAlreadySettled &&
		e.StatusCode == http.StatusBadRequest &&
		protocol.IsSettledMessage(e.Message)
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}
