// Package models defines server-side data models persisted in the database.
package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/common"
)

// AuthMethod is how the user unlocks the journal on their device. Both
// methods are backed by the same PIN hash on the server.
type AuthMethod string

const (
	AuthMethodPIN       AuthMethod = "pin"
	AuthMethodBiometric AuthMethod = "biometric"
)

// ParseAuthMethod accepts "pin" or "biometric"; empty means pin.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch AuthMethod(s) {
	case "", AuthMethodPIN:
		return AuthMethodPIN, nil
	case AuthMethodBiometric:
		return AuthMethodBiometric, nil
	default:
		return "", fmt.Errorf("%w: unknown auth method %q", common.ErrValidation, s)
	}
}

// SecurityRecord holds one user's PIN hash and lockout counters.
type SecurityRecord struct {
	UserID         string
	AuthMethod     AuthMethod
	PINHash        string
	FailedAttempts int
	// LockedUntil is nil when no lock was ever set or after a successful unlock.
	LockedUntil *time.Time
	UpdatedAt   time.Time
}
