// Package security provides the PostgreSQL-backed store for per-user PIN
// hashes and lockout counters.
package security

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

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const recordColumns = `user_id, auth_method, pin_hash, failed_attempts, locked_until, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.SecurityRecord, error) {
	var (
		rec         models.SecurityRecord
		method      string
		lockedUntil sql.NullTime
	)
	if err := row.Scan(&rec.UserID, &method, &rec.PINHash, &rec.FailedAttempts, &lockedUntil, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.AuthMethod = models.AuthMethod(method)
	if lockedUntil.Valid {
		t := lockedUntil.Time
		rec.LockedUntil = &t
	}
	return &rec, nil
}

// Get loads the record for userID or returns common.ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.SecurityRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM journal_security WHERE user_id = $1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// Upsert creates the record with clean counters, or re-keys an existing one.
// Re-keying replaces the method and hash only; an active lock stays in force.
func (r *PostgresRepository) Upsert(ctx context.Context, rec *models.SecurityRecord) error {
	query := `
		INSERT INTO journal_security (user_id, auth_method, pin_hash, failed_attempts, locked_until, updated_at)
		VALUES ($1, $2, $3, 0, NULL, $4)
		ON CONFLICT (user_id)
		DO UPDATE SET
			auth_method = EXCLUDED.auth_method,
			pin_hash = EXCLUDED.pin_hash,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, rec.UserID, string(rec.AuthMethod), rec.PINHash, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// RecordFailedAttempt increments failed_attempts and, when the new count
// reaches threshold, moves locked_until forward to lockUntil. A lock that
// expired at or before now is discarded first, so the count restarts at 1.
// The whole read-modify-write is one statement; an active lock never moves
// backwards. The returned record reflects the row after the update.
func (r *PostgresRepository) RecordFailedAttempt(ctx context.Context, userID string, threshold int, lockUntil, now time.Time) (*models.SecurityRecord, error) {
	query := `
		UPDATE journal_security
		SET
			failed_attempts = CASE
				WHEN locked_until <= $4 THEN 1
				ELSE failed_attempts + 1
			END,
			locked_until = CASE
				WHEN locked_until <= $4 AND $2 > 1 THEN NULL
				WHEN failed_attempts + 1 >= $2 THEN GREATEST(COALESCE(locked_until, $3), $3)
				ELSE locked_until
			END,
			updated_at = $4
		WHERE user_id = $1
		RETURNING ` + recordColumns

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, userID, threshold, lockUntil, now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// ResetFailures clears the counters after a successful verification. The
// reset only applies while no lock is active at now; false means a
// concurrent request locked the user and the success must not be honoured.
func (r *PostgresRepository) ResetFailures(ctx context.Context, userID string, now time.Time) (bool, error) {
	query := `
		UPDATE journal_security
		SET failed_attempts = 0, locked_until = NULL, updated_at = $2
		WHERE user_id = $1 AND (locked_until IS NULL OR locked_until <= $2)
	`
	res, err := r.db.ExecContext(ctx, query, userID, now)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	switch err := dbx.ExpectOneRow(res); {
	case err == nil:
		return true, nil
	case errors.Is(err, common.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
