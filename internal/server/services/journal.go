package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/clock"
	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/dbx"
	"github.com/dmitrijs2005/gophjournal/internal/logging"
	"github.com/dmitrijs2005/gophjournal/internal/server/events"
	"github.com/dmitrijs2005/gophjournal/internal/server/models"
	"github.com/dmitrijs2005/gophjournal/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// MaxContentBytes bounds a single entry's plaintext.
const MaxContentBytes = 64 << 10

// EntryCipher seals entry plaintext under a key id.
type EntryCipher interface {
	Encrypt(plaintext string) ([]byte, string, error)
	Decrypt(ciphertext []byte, keyID string) (string, error)
}

type CreateEntryInput struct {
	Content    string
	PromptUsed *string
	// EntryDate defaults to today (UTC) when nil.
	EntryDate *time.Time
}

// DateRange bounds List by entry date, inclusive. Nil ends are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// DecryptedEntry is the read model returned by Get.
type DecryptedEntry struct {
	models.EntryMetadata
	Content string
}

// WordCount is the number of non-empty whitespace-delimited tokens, so ""
// and whitespace-only text count 0.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// JournalService encrypts entries on write and decrypts them on read. Access
// control happens before it is called: callers pass the token's user id.
type JournalService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	cipher      EntryCipher
	clock       clock.Clock
	events      events.Publisher
	logger      logging.Logger
}

func NewJournalService(db dbx.DBTX, m repomanager.RepositoryManager, cipher EntryCipher,
	clk clock.Clock, pub events.Publisher, logger logging.Logger) *JournalService {
	return &JournalService{
		db:          db,
		repomanager: m,
		cipher:      cipher,
		clock:       clk,
		events:      pub,
		logger:      logger.With("component", "journal"),
	}
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", common.ErrValidation)
	}
	if len(content) > MaxContentBytes {
		return fmt.Errorf("%w: content exceeds %d bytes", common.ErrValidation, MaxContentBytes)
	}
	return nil
}

// validEntryID rejects ids that cannot exist so they surface as not found
// rather than a database type error.
func validEntryID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func normalizePrompt(p *string) *string {
	if p == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*p)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Create encrypts content and stores it. Only metadata is returned.
func (s *JournalService) Create(ctx context.Context, userID string, in CreateEntryInput) (*models.EntryMetadata, error) {
	if err := validateContent(in.Content); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	entryDate := dateOnly(now)
	if in.EntryDate != nil {
		entryDate = dateOnly(*in.EntryDate)
	}

	ct, keyID, err := s.cipher.Encrypt(in.Content)
	if err != nil {
		return nil, fmt.Errorf("encrypt entry: %w", err)
	}

	entry := &models.JournalEntry{
		ID:               uuid.NewString(),
		UserID:           userID,
		EntryDate:        entryDate,
		EncryptedContent: ct,
		EncryptionKeyID:  keyID,
		PromptUsed:       normalizePrompt(in.PromptUsed),
		WordCount:        WordCount(in.Content),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repomanager.Entries(s.db).Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}

	s.logger.Debug(ctx, "entry created", "user_id", userID, "entry_id", entry.ID, "key_id", keyID)
	meta := entry.Metadata()
	return &meta, nil
}

// Get loads and decrypts one entry. An entry owned by another user is
// reported exactly like a missing one.
func (s *JournalService) Get(ctx context.Context, entryID, userID string) (*DecryptedEntry, error) {
	if !validEntryID(entryID) {
		return nil, common.ErrNotFound
	}

	entry, err := s.repomanager.Entries(s.db).GetByID(ctx, entryID, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("load entry: %w", err)
	}

	plaintext, err := s.cipher.Decrypt(entry.EncryptedContent, entry.EncryptionKeyID)
	if err != nil {
		s.logger.Error(ctx, "entry decryption failed, possible data integrity incident",
			"user_id", userID, "entry_id", entryID, "key_id", entry.EncryptionKeyID, "error", err)
		if pubErr := s.events.Publish(ctx, events.Event{
			Type:       events.TypeDecryptionFailed,
			UserID:     userID,
			OccurredAt: s.clock.Now(),
			Attributes: map[string]string{"entry_id": entryID, "key_id": entry.EncryptionKeyID},
		}); pubErr != nil {
			s.logger.Error(ctx, "failed to publish security event", "event", events.TypeDecryptionFailed, "error", pubErr)
		}
		return nil, common.ErrDecryptionFailed
	}

	return &DecryptedEntry{EntryMetadata: entry.Metadata(), Content: plaintext}, nil
}

// Update re-encrypts the entry under the active key.
func (s *JournalService) Update(ctx context.Context, entryID, userID, content string) (*models.EntryMetadata, error) {
	if err := validateContent(content); err != nil {
		return nil, err
	}
	if !validEntryID(entryID) {
		return nil, common.ErrNotFound
	}

	ct, keyID, err := s.cipher.Encrypt(content)
	if err != nil {
		return nil, fmt.Errorf("encrypt entry: %w", err)
	}

	entry := &models.JournalEntry{
		ID:               entryID,
		UserID:           userID,
		EncryptedContent: ct,
		EncryptionKeyID:  keyID,
		WordCount:        WordCount(content),
		UpdatedAt:        s.clock.Now(),
	}
	if err := s.repomanager.Entries(s.db).Update(ctx, entry); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("update entry: %w", err)
	}

	meta := entry.Metadata()
	return &meta, nil
}

// List returns metadata only; nothing is decrypted.
func (s *JournalService) List(ctx context.Context, userID string, r DateRange) ([]models.EntryMetadata, error) {
	var from, to *time.Time
	if r.From != nil {
		f := dateOnly(*r.From)
		from = &f
	}
	if r.To != nil {
		t := dateOnly(*r.To)
		to = &t
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, fmt.Errorf("%w: from is after to", common.ErrValidation)
	}

	items, err := s.repomanager.Entries(s.db).ListMetadata(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return items, nil
}

func (s *JournalService) Delete(ctx context.Context, entryID, userID string) error {
	if !validEntryID(entryID) {
		return common.ErrNotFound
	}
	if err := s.repomanager.Entries(s.db).Delete(ctx, entryID, userID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return fmt.Errorf("delete entry: %w", err)
	}
	s.logger.Debug(ctx, "entry deleted", "user_id", userID, "entry_id", entryID)
	return nil
}
