// Package entries provides the PostgreSQL-backed repository for encrypted
// journal entries.
package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/dbx"
	"github.com/dmitrijs2005/gophjournal/internal/server/models"
)

// PostgresRepository implements entry storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Create inserts a new entry. ID and timestamps are assigned by the caller.
func (r *PostgresRepository) Create(ctx context.Context, e *models.JournalEntry) error {
	query := `
		INSERT INTO journal_entries
			(entry_id, user_id, entry_date, encrypted_content, encryption_key_id, prompt_used, word_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.UserID, e.EntryDate, e.EncryptedContent, e.EncryptionKeyID,
		nullString(e.PromptUsed), e.WordCount, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID loads a single entry including its ciphertext.
func (r *PostgresRepository) GetByID(ctx context.Context, entryID, userID string) (*models.JournalEntry, error) {
	query := `
		SELECT entry_id, user_id, entry_date, encrypted_content, encryption_key_id, prompt_used, word_count, created_at, updated_at
		FROM journal_entries
		WHERE entry_id = $1 AND user_id = $2
	`
	var (
		e      models.JournalEntry
		prompt sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, entryID, userID).Scan(
		&e.ID, &e.UserID, &e.EntryDate, &e.EncryptedContent, &e.EncryptionKeyID,
		&prompt, &e.WordCount, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	e.PromptUsed = stringPtr(prompt)
	return &e, nil
}

// Update overwrites ciphertext, key id, word count and updated_at, then fills
// the unchanged metadata columns back into e.
func (r *PostgresRepository) Update(ctx context.Context, e *models.JournalEntry) error {
	query := `
		UPDATE journal_entries
		SET encrypted_content = $3, encryption_key_id = $4, word_count = $5, updated_at = $6
		WHERE entry_id = $1 AND user_id = $2
		RETURNING entry_date, prompt_used, created_at
	`
	var prompt sql.NullString
	err := r.db.QueryRowContext(ctx, query,
		e.ID, e.UserID, e.EncryptedContent, e.EncryptionKeyID, e.WordCount, e.UpdatedAt,
	).Scan(&e.EntryDate, &prompt, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	e.PromptUsed = stringPtr(prompt)
	return nil
}

// ListMetadata returns entries whose entry_date falls within [from, to]; nil
// bounds are open. The ciphertext column is never read.
func (r *PostgresRepository) ListMetadata(ctx context.Context, userID string, from, to *time.Time) ([]models.EntryMetadata, error) {
	query := `
		SELECT entry_id, entry_date, prompt_used, word_count, created_at, updated_at
		FROM journal_entries
		WHERE user_id = $1
			AND ($2::date IS NULL OR entry_date >= $2::date)
			AND ($3::date IS NULL OR entry_date <= $3::date)
		ORDER BY entry_date DESC, created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	result := []models.EntryMetadata{}
	for rows.Next() {
		var (
			m      models.EntryMetadata
			prompt sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.EntryDate, &prompt, &m.WordCount, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.PromptUsed = stringPtr(prompt)
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete hard-deletes an entry owned by userID.
func (r *PostgresRepository) Delete(ctx context.Context, entryID, userID string) error {
	query := `DELETE FROM journal_entries WHERE entry_id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, entryID, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res)
}
