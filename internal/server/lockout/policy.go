// Package lockout decides whether a PIN verification attempt may proceed.
//
// The package is pure: it holds no state and reads no clock. Callers pass the
// counters loaded from storage together with the current time.
package lockout

import (
	"fmt"
	"time"
)

const (
	DefaultThreshold = 3
	DefaultLockFor   = 15 * time.Minute
)

// Policy is the threshold rule applied after a failed verification: once
// Threshold consecutive failures are recorded the user is locked for LockFor.
type Policy struct {
	Threshold int
	LockFor   time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Threshold: DefaultThreshold, LockFor: DefaultLockFor}
}

func (p Policy) Validate() error {
	if p.Threshold < 1 {
		return fmt.Errorf("lockout threshold must be positive, got %d", p.Threshold)
	}
	if p.LockFor <= 0 {
		return fmt.Errorf("lockout duration must be positive, got %s", p.LockFor)
	}
	return nil
}

// Decision is the outcome of Evaluate. When Allowed is false RetryAfter is the
// time left until the lock expires and is always positive.
type Decision struct {
	Allowed           bool
	RetryAfter        time.Duration
	AttemptsRemaining int
}

// Evaluate refuses the attempt while lockedUntil lies strictly in the future.
// A lock expires exactly at lockedUntil.
func (p Policy) Evaluate(failedAttempts int, lockedUntil *time.Time, now time.Time) Decision {
	if lockedUntil != nil && lockedUntil.After(now) {
		return Decision{RetryAfter: lockedUntil.Sub(now)}
	}
	return Decision{Allowed: true, AttemptsRemaining: p.AttemptsRemaining(failedAttempts)}
}

// AttemptsRemaining is max(0, Threshold - failed).
func (p Policy) AttemptsRemaining(failed int) int {
	if n := p.Threshold - failed; n > 0 {
		return n
	}
	return 0
}

func (p Policy) LockUntil(now time.Time) time.Time {
	return now.Add(p.LockFor)
}
