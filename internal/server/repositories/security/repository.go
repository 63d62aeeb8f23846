package security

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/server/models"
)

// Repository persists journal_security rows. Counter mutations are single
// statements so concurrent requests for the same user never lose an update.
type Repository interface {
	Get(ctx context.Context, userID string) (*models.SecurityRecord, error)
	Upsert(ctx context.Context, rec *models.SecurityRecord) error
	RecordFailedAttempt(ctx context.Context, userID string, threshold int, lockUntil, now time.Time) (*models.SecurityRecord, error)
	ResetFailures(ctx context.Context, userID string, now time.Time) (bool, error)
}
