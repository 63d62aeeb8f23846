// Package ratelimit throttles unlock requests per user, independently of the
// persisted lockout counter.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the result of consuming one request from a key's budget.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter consumes one unit of budget for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Unlimited admits everything. Used when throttling is disabled.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (Decision, error) {
	return Decision{Allowed: true}, nil
}
