package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophjournal/internal/clock"
	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/dbx"
	"github.com/dmitrijs2005/gophjournal/internal/logging"
	"github.com/dmitrijs2005/gophjournal/internal/server/auth"
	"github.com/dmitrijs2005/gophjournal/internal/server/events"
	"github.com/dmitrijs2005/gophjournal/internal/server/lockout"
	"github.com/dmitrijs2005/gophjournal/internal/server/models"
	"github.com/dmitrijs2005/gophjournal/internal/server/repositories/repomanager"
)

const (
	MinPINLength = 4
	MaxPINLength = 64
)

// Outcome tags the result of a PIN verification.
type Outcome int

const (
	OutcomeSuccess Outcome = iota + 1
	OutcomeInvalid
	OutcomeLocked
	OutcomeNotConfigured
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeLocked:
		return "locked"
	case OutcomeNotConfigured:
		return "not_configured"
	default:
		return "unknown"
	}
}

// VerifyResult is the tagged outcome of Verify. AttemptsRemaining is set for
// OutcomeInvalid, RetryAfter for OutcomeLocked.
type VerifyResult struct {
	Outcome           Outcome
	AttemptsRemaining int
	RetryAfter        time.Duration
}

// Err maps a non-success outcome onto the common sentinel errors.
func (r VerifyResult) Err() error {
	switch r.Outcome {
	case OutcomeSuccess:
		return nil
	case OutcomeInvalid:
		return common.ErrInvalidCredential
	case OutcomeLocked:
		return common.ErrLocked
	case OutcomeNotConfigured:
		return common.ErrNotConfigured
	default:
		return common.ErrInternal
	}
}

// UnlockResult carries a token only when Outcome is OutcomeSuccess.
type UnlockResult struct {
	VerifyResult
	Token *auth.AccessToken
}

type PINHasher interface {
	Hash(pin string) (string, error)
	Verify(pin, encoded string) (bool, error)
}

type TokenIssuer interface {
	Issue(userID string) (auth.AccessToken, error)
}

// SecurityDeps are the collaborators of SecurityService.
type SecurityDeps struct {
	Hasher PINHasher
	Tokens TokenIssuer
	Policy lockout.Policy
	Clock  clock.Clock
	Events events.Publisher
	Logger logging.Logger
}

// SecurityService configures PINs, verifies them under the lockout policy and
// issues journal tokens. It keeps no per-user state; every counter change is
// a single statement in the security repository.
type SecurityService struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	hasher      PINHasher
	tokens      TokenIssuer
	policy      lockout.Policy
	clock       clock.Clock
	events      events.Publisher
	logger      logging.Logger
}

func NewSecurityService(db dbx.DBTX, m repomanager.RepositoryManager, deps SecurityDeps) *SecurityService {
	return &SecurityService{
		db:          db,
		repomanager: m,
		hasher:      deps.Hasher,
		tokens:      deps.Tokens,
		policy:      deps.Policy,
		clock:       deps.Clock,
		events:      deps.Events,
		logger:      deps.Logger.With("component", "security"),
	}
}

func validatePIN(pin string) error {
	n := utf8.RuneCountInString(pin)
	if n < MinPINLength || n > MaxPINLength {
		return fmt.Errorf("%w: pin must be %d to %d characters", common.ErrValidation, MinPINLength, MaxPINLength)
	}
	return nil
}

// Setup stores a fresh hash of pin for userID. Running it again re-keys the
// journal; lockout counters are left as they are.
func (s *SecurityService) Setup(ctx context.Context, userID, pin, method string) error {
	if userID == "" {
		return fmt.Errorf("%w: missing user id", common.ErrValidation)
	}
	if err := validatePIN(pin); err != nil {
		return err
	}
	authMethod, err := models.ParseAuthMethod(method)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(pin)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}

	rec := &models.SecurityRecord{
		UserID:     userID,
		AuthMethod: authMethod,
		PINHash:    hash,
		UpdatedAt:  s.clock.Now(),
	}
	if err := s.repomanager.Security(s.db).Upsert(ctx, rec); err != nil {
		return fmt.Errorf("save security record: %w", err)
	}

	s.logger.Info(ctx, "journal security configured", "user_id", userID, "auth_method", string(authMethod))
	return nil
}

// Verify checks pin for userID. The returned error is reserved for
// infrastructure failures and input validation; every verification outcome
// is reported through VerifyResult.
func (s *SecurityService) Verify(ctx context.Context, userID, pin string) (VerifyResult, error) {
	if userID == "" {
		return VerifyResult{}, fmt.Errorf("%w: missing user id", common.ErrValidation)
	}
	if pin == "" {
		return VerifyResult{}, fmt.Errorf("%w: pin is required", common.ErrValidation)
	}

	repo := s.repomanager.Security(s.db)
	rec, err := repo.Get(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		return VerifyResult{Outcome: OutcomeNotConfigured}, nil
	}
	if err != nil {
		return VerifyResult{}, fmt.Errorf("load security record: %w", err)
	}

	now := s.clock.Now()
	if d := s.policy.Evaluate(rec.FailedAttempts, rec.LockedUntil, now); !d.Allowed {
		s.logger.Info(ctx, "unlock refused, journal locked", "user_id", userID, "retry_after", d.RetryAfter)
		return VerifyResult{Outcome: OutcomeLocked, RetryAfter: d.RetryAfter}, nil
	}

	ok, err := s.hasher.Verify(pin, rec.PINHash)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("verify pin: %w", err)
	}
	if !ok {
		return s.recordFailure(ctx, userID, now)
	}

	reset, err := repo.ResetFailures(ctx, userID, now)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("reset failures: %w", err)
	}
	if !reset {
		// A concurrent failure locked the user between load and reset.
		return s.lockedAfterRace(ctx, userID, now)
	}
	return VerifyResult{Outcome: OutcomeSuccess}, nil
}

func (s *SecurityService) recordFailure(ctx context.Context, userID string, now time.Time) (VerifyResult, error) {
	updated, err := s.repomanager.Security(s.db).RecordFailedAttempt(
		ctx, userID, s.policy.Threshold, s.policy.LockUntil(now), now)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("record failed attempt: %w", err)
	}

	d := s.policy.Evaluate(updated.FailedAttempts, updated.LockedUntil, now)
	if !d.Allowed {
		s.logger.Warn(ctx, "journal locked after failed attempts",
			"user_id", userID, "failed_attempts", updated.FailedAttempts, "locked_until", *updated.LockedUntil)
		s.publish(ctx, events.Event{
			Type:       events.TypeLocked,
			UserID:     userID,
			OccurredAt: now,
			Attributes: map[string]string{
				"failed_attempts": strconv.Itoa(updated.FailedAttempts),
				"locked_until":    updated.LockedUntil.UTC().Format(time.RFC3339),
			},
		})
		return VerifyResult{Outcome: OutcomeLocked, RetryAfter: d.RetryAfter}, nil
	}

	s.logger.Info(ctx, "invalid pin", "user_id", userID, "attempts_remaining", d.AttemptsRemaining)
	return VerifyResult{Outcome: OutcomeInvalid, AttemptsRemaining: d.AttemptsRemaining}, nil
}

func (s *SecurityService) lockedAfterRace(ctx context.Context, userID string, now time.Time) (VerifyResult, error) {
	rec, err := s.repomanager.Security(s.db).Get(ctx, userID)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("reload security record: %w", err)
	}
	res := VerifyResult{Outcome: OutcomeLocked, RetryAfter: s.policy.LockFor}
	if d := s.policy.Evaluate(rec.FailedAttempts, rec.LockedUntil, now); !d.Allowed {
		res.RetryAfter = d.RetryAfter
	}
	s.logger.Warn(ctx, "correct pin rejected, lock set concurrently", "user_id", userID)
	return res, nil
}

func (s *SecurityService) publish(ctx context.Context, ev events.Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Error(ctx, "failed to publish security event", "event", ev.Type, "error", err)
	}
}

// Unlock verifies pin and, on success only, mints a journal token.
func (s *SecurityService) Unlock(ctx context.Context, userID, pin string) (UnlockResult, error) {
	res, err := s.Verify(ctx, userID, pin)
	if err != nil || res.Outcome != OutcomeSuccess {
		return UnlockResult{VerifyResult: res}, err
	}

	tok, err := s.tokens.Issue(userID)
	if err != nil {
		return UnlockResult{}, fmt.Errorf("issue token: %w", err)
	}
	s.logger.Info(ctx, "journal unlocked", "user_id", userID, "token_id", tok.ID, "expires_at", tok.ExpiresAt)
	return UnlockResult{VerifyResult: res, Token: &tok}, nil
}
