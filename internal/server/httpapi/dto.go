package httpapi

import (
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/server/models"
	"github.com/dmitrijs2005/gophjournal/internal/server/services"
)

type setupRequest struct {
	PIN        string `json:"pin"`
	AuthMethod string `json:"auth_method,omitempty"`
}

type unlockRequest struct {
	PIN string `json:"pin"`
}

type unlockResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type createEntryRequest struct {
	Content    string  `json:"content"`
	PromptUsed *string `json:"prompt_used,omitempty"`
	// EntryDate is YYYY-MM-DD.
	EntryDate string `json:"entry_date,omitempty"`
}

type updateEntryRequest struct {
	Content string `json:"content"`
}

type entryListItem struct {
	EntryID    string    `json:"entry_id"`
	EntryDate  string    `json:"entry_date"`
	PromptUsed *string   `json:"prompt_used"`
	WordCount  int       `json:"word_count"`
	CreatedAt  time.Time `json:"created_at"`
}

type entryMetadata struct {
	entryListItem
	UpdatedAt time.Time `json:"updated_at"`
}

type entryResponse struct {
	entryMetadata
	Content string `json:"content"`
}

func toListItem(m models.EntryMetadata) entryListItem {
	return entryListItem{
		EntryID:    m.ID,
		EntryDate:  m.EntryDate.Format(common.DateLayout),
		PromptUsed: m.PromptUsed,
		WordCount:  m.WordCount,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

func toMetadata(m models.EntryMetadata) entryMetadata {
	return entryMetadata{entryListItem: toListItem(m), UpdatedAt: m.UpdatedAt.UTC()}
}

func toEntry(e *services.DecryptedEntry) entryResponse {
	return entryResponse{entryMetadata: toMetadata(e.EntryMetadata), Content: e.Content}
}
