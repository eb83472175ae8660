package domain

import (
	"encoding/json"
	"time"
)

// Account is the persisted wallet record for one Telegram user. The Telegram
// user id is the primary key; everything else is mutable.
type Account struct {
	TelegramUserID int64
	Username       *string
	FirstName      *string
	LastName       *string
	AvatarURL      *string

	// PIN state. A nil PinCode means no PIN has been configured yet.
	PinCode        *string
	PinAttempts    int
	PinLockedUntil *time.Time

	// Opaque JSON owned by the client: per-chain address map and balances.
	WalletAddresses json.RawMessage
	TokenBalances   json.RawMessage

	// SeedPhrase is stored sealed (see pkg/cryptox), never plaintext.
	SeedPhrase *string

	// ReferredBy is the referral code captured at first sight, if any.
	ReferredBy *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPin reports whether a PIN has been configured.
func (a Account) HasPin() bool {
	return a.PinCode != nil && *a.PinCode != ""
}

// LockRemaining returns how long the account stays locked from now, and
// whether it is currently locked. An elapsed pin_locked_until counts as
// unlocked; expiry is evaluated lazily on access.
func (a Account) LockRemaining(now time.Time) (time.Duration, bool) {
	if a.PinLockedUntil == nil {
		return 0, false
	}
	remaining := a.PinLockedUntil.Sub(now)
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}
