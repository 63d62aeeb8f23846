package entries

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/server/models"
)

// Repository stores journal entries. Every method is scoped by user id; an
// entry owned by someone else is reported as common.ErrNotFound.
type Repository interface {
	Create(ctx context.Context, entry *models.JournalEntry) error
	GetByID(ctx context.Context, entryID, userID string) (*models.JournalEntry, error)
	Update(ctx context.Context, entry *models.JournalEntry) error
	ListMetadata(ctx context.Context, userID string, from, to *time.Time) ([]models.EntryMetadata, error)
	Delete(ctx context.Context, entryID, userID string) error
}
