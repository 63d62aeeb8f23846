package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/cryptox"
	"github.com/dmitrijs2005/gophjournal/internal/dbx"
	"github.com/dmitrijs2005/gophjournal/internal/server/events"
	"github.com/dmitrijs2005/gophjournal/internal/server/models"
	"github.com/dmitrijs2005/gophjournal/internal/server/repositories/entries"
	"github.com/dmitrijs2005/gophjournal/internal/server/repositories/security"
)

// --- security repo: each method is atomic, like the single SQL statements ---

type fakeSecurityRepo struct {
	mu   sync.Mutex
	rows map[string]models.SecurityRecord

	getErr    error
	recordErr error
	resetErr  error
	// lockBeforeReset simulates a concurrent request locking the user
	// between Verify's load and its reset.
	lockBeforeReset *time.Time
}

func newFakeSecurityRepo() *fakeSecurityRepo {
	return &fakeSecurityRepo{rows: make(map[string]models.SecurityRecord)}
}

func (f *fakeSecurityRepo) Get(_ context.Context, userID string) (*models.SecurityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.rows[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &rec, nil
}

func (f *fakeSecurityRepo) Upsert(_ context.Context, rec *models.SecurityRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[rec.UserID]
	if !ok {
		f.rows[rec.UserID] = models.SecurityRecord{
			UserID: rec.UserID, AuthMethod: rec.AuthMethod, PINHash: rec.PINHash, UpdatedAt: rec.UpdatedAt,
		}
		return nil
	}
	cur.AuthMethod, cur.PINHash, cur.UpdatedAt = rec.AuthMethod, rec.PINHash, rec.UpdatedAt
	f.rows[rec.UserID] = cur
	return nil
}

func (f *fakeSecurityRepo) RecordFailedAttempt(_ context.Context, userID string, threshold int, lockUntil, now time.Time) (*models.SecurityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	rec, ok := f.rows[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	if rec.LockedUntil != nil && !rec.LockedUntil.After(now) {
		rec.FailedAttempts = 0
		rec.LockedUntil = nil
	}
	rec.FailedAttempts++
	if rec.FailedAttempts >= threshold {
		until := lockUntil
		if rec.LockedUntil != nil && rec.LockedUntil.After(until) {
			until = *rec.LockedUntil
		}
		rec.LockedUntil = &until
	}
	rec.UpdatedAt = now
	f.rows[userID] = rec
	return &rec, nil
}

func (f *fakeSecurityRepo) ResetFailures(_ context.Context, userID string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resetErr != nil {
		return false, f.resetErr
	}
	rec, ok := f.rows[userID]
	if !ok {
		return false, nil
	}
	if f.lockBeforeReset != nil {
		until := *f.lockBeforeReset
		rec.LockedUntil = &until
		rec.FailedAttempts = 3
		f.rows[userID] = rec
	}
	if rec.LockedUntil != nil && rec.LockedUntil.After(now) {
		return false, nil
	}
	rec.FailedAttempts = 0
	rec.LockedUntil = nil
	rec.UpdatedAt = now
	f.rows[userID] = rec
	return true, nil
}

func (f *fakeSecurityRepo) row(userID string) models.SecurityRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[userID]
}

// --- entries repo ---

type fakeEntriesRepo struct {
	mu   sync.Mutex
	rows map[string]models.JournalEntry

	createErr error
	listErr   error
	// lastFrom/lastTo capture ListMetadata bounds.
	lastFrom, lastTo *time.Time
}

func newFakeEntriesRepo() *fakeEntriesRepo {
	return &fakeEntriesRepo{rows: make(map[string]models.JournalEntry)}
}

func (f *fakeEntriesRepo) Create(_ context.Context, e *models.JournalEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.rows[e.ID] = *e
	return nil
}

func (f *fakeEntriesRepo) GetByID(_ context.Context, entryID, userID string) (*models.JournalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[entryID]
	if !ok || e.UserID != userID {
		return nil, common.ErrNotFound
	}
	return &e, nil
}

func (f *fakeEntriesRepo) Update(_ context.Context, e *models.JournalEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[e.ID]
	if !ok || cur.UserID != e.UserID {
		return common.ErrNotFound
	}
	cur.EncryptedContent, cur.EncryptionKeyID, cur.WordCount, cur.UpdatedAt =
		e.EncryptedContent, e.EncryptionKeyID, e.WordCount, e.UpdatedAt
	f.rows[e.ID] = cur
	e.EntryDate, e.PromptUsed, e.CreatedAt = cur.EntryDate, cur.PromptUsed, cur.CreatedAt
	return nil
}

func (f *fakeEntriesRepo) ListMetadata(_ context.Context, userID string, from, to *time.Time) ([]models.EntryMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFrom, f.lastTo = from, to
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []models.EntryMetadata{}
	for _, e := range f.rows {
		if e.UserID != userID {
			continue
		}
		if from != nil && e.EntryDate.Before(*from) {
			continue
		}
		if to != nil && e.EntryDate.After(*to) {
			continue
		}
		out = append(out, e.Metadata())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryDate.After(out[j].EntryDate) })
	return out, nil
}

func (f *fakeEntriesRepo) Delete(_ context.Context, entryID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[entryID]
	if !ok || e.UserID != userID {
		return common.ErrNotFound
	}
	delete(f.rows, entryID)
	return nil
}

func (f *fakeEntriesRepo) corrupt(entryID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.rows[entryID]
	e.EncryptedContent = append([]byte(nil), e.EncryptedContent...)
	e.EncryptedContent[len(e.EncryptedContent)-1] ^= 0xff
	f.rows[entryID] = e
}

// --- repo manager ---

type fakeRepoManager struct {
	sec *fakeSecurityRepo
	ent *fakeEntriesRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Security(dbx.DBTX) security.Repository      { return m.sec }
func (m *fakeRepoManager) Entries(dbx.DBTX) entries.Repository        { return m.ent }

// --- collaborators ---

type countingHasher struct {
	*cryptox.PINHasher
	verifies atomic.Int64
	err      error
}

func newCountingHasher() *countingHasher {
	return &countingHasher{PINHasher: cryptox.NewPINHasher(cryptox.Argon2Params{
		Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})}
}

func (h *countingHasher) Verify(pin, encoded string) (bool, error) {
	h.verifies.Add(1)
	if h.err != nil {
		return false, h.err
	}
	return h.PINHasher.Verify(pin, encoded)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) ofType(t string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
