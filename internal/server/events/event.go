// Package events publishes security-relevant journal events (lockouts,
// integrity failures) for downstream alerting.
package events

import (
	"context"
	"time"
)

// Routing keys on the events exchange.
const (
	TypeLocked           = "journal.security.locked"
	TypeDecryptionFailed = "journal.entry.decryption_failed"
)

// Event never carries PINs, hashes, keys or plaintext.
type Event struct {
	Type       string            `json:"type"`
	UserID     string            `json:"user_id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Publisher delivers events. Publish failures are reported to the caller,
// which logs them; a lost event never fails the request that produced it.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}
