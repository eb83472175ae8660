package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAccountNotFound reports an operation against a Telegram user id
	// that has never authenticated.
	ErrAccountNotFound = errors.New("account not found")

	// ErrPinNotSet reports a verification attempt before any PIN was
	// configured. Callers discover configuration state via HasPin.
	ErrPinNotSet = errors.New("PIN code not set")

	// ErrInvalidPinFormat reports a candidate PIN that is not exactly four
	// digits.
	ErrInvalidPinFormat = errors.New("PIN must be exactly 4 digits")

	// ErrSeedNotSet reports a seed read before any seed was stored.
	ErrSeedNotSet = errors.New("seed phrase not set")

	// ErrInvalidPayload reports wallet data that is not a JSON object.
	ErrInvalidPayload = errors.New("invalid payload")
)

// PinLockedError reports a verification attempt while the account is locked.
// Attempts during the lock window never consume a counter.
type PinLockedError struct {
	Remaining time.Duration
}

func (e *PinLockedError) Error() string {
	return fmt.Sprintf("PIN locked, try again in %d seconds", int(e.Remaining.Seconds()))
}

// PinMismatchError reports a wrong PIN while the account is still unlocked.
type PinMismatchError struct {
	AttemptsRemaining int
}

func (e *PinMismatchError) Error() string {
	return fmt.Sprintf("incorrect PIN code, %d attempts remaining", e.AttemptsRemaining)
}
