package client

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/common"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	// AttemptsRemaining is set on a wrong-PIN 401.
	AttemptsRemaining *int
	// RetryAfter comes from the Retry-After header on 423 and 429.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return common.ErrValidation
	case http.StatusUnauthorized:
		if e.AttemptsRemaining != nil {
			return common.ErrInvalidCredential
		}
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		if e.Message == common.ErrNotConfigured.Error() {
			return common.ErrNotConfigured
		}
		return common.ErrNotFound
	case http.StatusLocked:
		return common.ErrLocked
	case http.StatusTooManyRequests:
		return common.ErrRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return ErrUnavailable
	default:
		return common.ErrInternal
	}
}
