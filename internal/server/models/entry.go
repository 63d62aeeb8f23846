package models

import "time"

// JournalEntry is a persisted diary entry. Content is held only as ciphertext
// together with the id of the key that sealed it.
type JournalEntry struct {
	ID               string
	UserID           string
	EntryDate        time.Time
	EncryptedContent []byte
	EncryptionKeyID  string
	PromptUsed       *string
	WordCount        int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Metadata strips the ciphertext from e.
func (e *JournalEntry) Metadata() EntryMetadata {
	return EntryMetadata{
		ID:         e.ID,
		EntryDate:  e.EntryDate,
		PromptUsed: e.PromptUsed,
		WordCount:  e.WordCount,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

// EntryMetadata is the non-sensitive view of an entry returned by list,
// create and update.
type EntryMetadata struct {
	ID         string
	EntryDate  time.Time
	PromptUsed *string
	WordCount  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
