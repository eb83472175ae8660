// Package store defines the data access boundary of the wallet service. The
// sqlite driver implements it; services depend only on these interfaces.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/telewallet/telewallet/internal/wallet/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// ProfilePatch carries exactly the profile fields to change; nil means keep
// the stored value. Updates never touch PIN or wallet fields.
type ProfilePatch struct {
	Username  *string
	FirstName *string
	LastName  *string
	AvatarURL *string
}

// IsZero reports whether the patch changes nothing.
func (p ProfilePatch) IsZero() bool {
	return p.Username == nil && p.FirstName == nil && p.LastName == nil && p.AvatarURL == nil
}

// Store is the root data access interface. All durable state lives behind it;
// it is also the sole point of concurrency control between requests.
type Store interface {
	Accounts() Accounts
	Transactions() Transactions

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store. The
	// caller MUST Commit or Rollback. PIN verification uses this directly so
	// the counter update commits even when the verify outcome is an error.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn inside a transaction, committing when fn returns nil
	// and rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transaction-scoped Store with commit/rollback control.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// GetByTelegramID returns the account keyed by telegram user id.
	GetByTelegramID(ctx context.Context, telegramUserID int64) (domain.Account, error)

	// Create inserts a new account. A duplicate telegram_user_id fails with
	// ErrAlreadyExists; callers treat that as "already created, fall through
	// to the update path".
	Create(ctx context.Context, a domain.Account) (domain.Account, error)

	// UpdateProfile applies a partial profile update and bumps updated_at.
	UpdateProfile(ctx context.Context, telegramUserID int64, patch ProfilePatch) (domain.Account, error)

	// SetPin stores a new PIN, resets pin_attempts to 0, and clears any lock.
	SetPin(ctx context.Context, telegramUserID int64, pin string) error

	// UpdatePinState persists the attempt counter and lock timestamp in one
	// statement. A nil lockedUntil clears the lock.
	UpdatePinState(ctx context.Context, telegramUserID int64, attempts int, lockedUntil *time.Time) error

	// UpdateWalletAddresses replaces the opaque address map.
	UpdateWalletAddresses(ctx context.Context, telegramUserID int64, addresses json.RawMessage) (domain.Account, error)

	// UpdateTokenBalances replaces the opaque balance map.
	UpdateTokenBalances(ctx context.Context, telegramUserID int64, balances json.RawMessage) (domain.Account, error)

	// UpdateSeedPhrase stores the sealed seed blob.
	UpdateSeedPhrase(ctx context.Context, telegramUserID int64, sealed string) error
}

type Transactions interface {
	// Upsert inserts a transaction or, when the id already exists for the
	// account, replaces its payload and network. Saves are idempotent by id.
	Upsert(ctx context.Context, t domain.Transaction) error

	// ListByTelegramID returns the account's transactions, newest first.
	ListByTelegramID(ctx context.Context, telegramUserID int64) ([]domain.Transaction, error)
}
