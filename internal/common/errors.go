// Package common defines shared constants and sentinel errors used across
// the journal server and its CLI client. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Verification outcomes surfaced as errors at the API boundary.
	ErrNotConfigured     = errors.New("journal security not configured")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrLocked            = errors.New("journal locked")

	// Input validation (empty PIN, empty content, malformed dates).
	ErrValidation = errors.New("validation error")

	// Ciphertext integrity or key mismatch. Never retried silently.
	ErrDecryptionFailed = errors.New("decryption failed")

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrWrongScope   = errors.New("token scope mismatch")

	// Throttling of unlock requests.
	ErrRateLimited = errors.New("too many requests")

	ErrInternal = errors.New("internal error")
)
