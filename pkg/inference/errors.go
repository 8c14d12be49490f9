package inference

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoAPIKey    = errors.New("inference: API key required")
	ErrNoModel     = errors.New("inference: model required")
	ErrUnavailable = errors.New("inference: provider unavailable")
	ErrNoChoices   = errors.New("inference: response has no choices")
)

// StatusError is a non-200 answer from the completions endpoint.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("inference: HTTP %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("inference: HTTP %d: %s", e.Status, e.Message)
}

// Temporary reports whether retrying the same request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Unauthorized reports a rejected API key.
func (e *StatusError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}
