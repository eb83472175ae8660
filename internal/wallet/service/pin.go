package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/telewallet/telewallet/internal/wallet/store"
)

const (
	// DefaultPinMaxAttempts is the number of consecutive failures that
	// locks the PIN.
	DefaultPinMaxAttempts = 3

	// DefaultPinLockDuration is how long a locked PIN stays locked.
	DefaultPinLockDuration = 5 * time.Minute
)

var pinFormat = regexp.MustCompile(`^\d{4}$`)

// PinService owns the PIN lifecycle: set, presence check, and verification
// with a lockout counter. Verification persists its counter updates inside a
// transaction that commits before the outcome is reported, so a failed write
// never masquerades as a successful verify and a mismatch always costs an
// attempt.
type PinService struct {
	Store        store.Store
	MaxAttempts  int
	LockDuration time.Duration

	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

func (s *PinService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *PinService) maxAttempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return DefaultPinMaxAttempts
}

func (s *PinService) lockDuration() time.Duration {
	if s.LockDuration > 0 {
		return s.LockDuration
	}
	return DefaultPinLockDuration
}

// Set stores a new PIN, replacing any existing one. Setting a PIN always
// succeeds regardless of lock state: it clears the lock and resets the
// attempt counter, since proving control of the account supersedes the
// stale counter.
func (s *PinService) Set(ctx context.Context, telegramUserID int64, pin string) error {
	if !pinFormat.MatchString(pin) {
		return ErrInvalidPinFormat
	}
	if err := s.Store.Accounts().SetPin(ctx, telegramUserID, pin); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

// Has reports whether the account has a PIN configured.
func (s *PinService) Has(ctx context.Context, telegramUserID int64) (bool, error) {
	acct, err := s.Store.Accounts().GetByTelegramID(ctx, telegramUserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, ErrAccountNotFound
		}
		return false, fmt.Errorf("load account: %w", err)
	}
	return acct.HasPin(), nil
}

// Verify checks the candidate PIN and advances the lockout state machine.
// Outcomes:
//   - nil: PIN matched, attempt counter reset.
//   - *PinLockedError: the PIN is locked; no attempt was consumed.
//   - *PinMismatchError: wrong PIN, carries the attempts remaining before
//     lockout.
//   - ErrPinNotSet / ErrAccountNotFound / other errors as named.
//
// Reaching the attempt limit locks the PIN and resets the counter to zero,
// so after the lock expires the caller starts with a full allowance.
func (s *PinService) Verify(ctx context.Context, telegramUserID int64, pin string) error {
	if !pinFormat.MatchString(pin) {
		return ErrInvalidPinFormat
	}

	tx, err := s.Store.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin verify tx: %w", err)
	}
	defer tx.Rollback()

	acct, err := tx.Accounts().GetByTelegramID(ctx, telegramUserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("load account: %w", err)
	}
	if !acct.HasPin() {
		return ErrPinNotSet
	}

	now := s.now()
	if remaining, locked := acct.LockRemaining(now); locked {
		return &PinLockedError{Remaining: remaining}
	}

	// An expired lock is cleared lazily: every branch below writes the pin
	// state, and none of them carries the stale lock forward. Attempts are
	// already zero from when the lock was set.
	attempts := acct.PinAttempts
	if acct.PinLockedUntil != nil {
		attempts = 0
	}

	if subtle.ConstantTimeCompare([]byte(*acct.PinCode), []byte(pin)) == 1 {
		if err := tx.Accounts().UpdatePinState(ctx, telegramUserID, 0, nil); err != nil {
			return fmt.Errorf("reset attempts: %w", err)
		}
		return tx.Commit()
	}

	attempts++
	var outcome error
	if attempts >= s.maxAttempts() {
		until := now.Add(s.lockDuration())
		if err := tx.Accounts().UpdatePinState(ctx, telegramUserID, 0, &until); err != nil {
			return fmt.Errorf("lock pin: %w", err)
		}
		outcome = &PinLockedError{Remaining: s.lockDuration()}
	} else {
		if err := tx.Accounts().UpdatePinState(ctx, telegramUserID, attempts, nil); err != nil {
			return fmt.Errorf("record failed attempt: %w", err)
		}
		outcome = &PinMismatchError{AttemptsRemaining: s.maxAttempts() - attempts}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit verify tx: %w", err)
	}
	return outcome
}
