package ccgate

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrBadRequest is returned when the gateway rejects the input
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized is returned for an invalid signature, nonce or token
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the membership threshold is not met or the
	// token lacks the required scope
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when content does not exist
	ErrNotFound = errors.New("not found")

	// ErrRateLimited is returned when the daily upload quota is used up
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable is returned when the gateway cannot reach a dependency
	ErrUnavailable = errors.New("service unavailable")
)

// APIError is an error response of the gateway
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	Details    string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

// Is maps the status code to the package sentinels
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrBadRequest:
		return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusRequestEntityTooLarge
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrUnavailable:
		return e.StatusCode == http.StatusServiceUnavailable || e.StatusCode == http.StatusBadGateway
	default:
		return false
	}
}
