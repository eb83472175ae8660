package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/telewallet/telewallet/internal/wallet/domain"
	"github.com/telewallet/telewallet/internal/wallet/initdata"
	"github.com/telewallet/telewallet/internal/wallet/store"
	"github.com/telewallet/telewallet/pkg/jwtx"
)

// AuthService verifies Telegram initData payloads and resolves them to wallet
// accounts, creating the account on first sight and reconciling profile
// fields afterwards.
type AuthService struct {
	Store    store.Store
	Verifier *initdata.Verifier
	Sessions *jwtx.Signer
}

// Login verifies the raw initData blob, upserts the account, and mints a
// session token. Verification failures come back as initdata sentinel errors
// so the boundary can map each one distinctly.
func (s *AuthService) Login(ctx context.Context, rawInitData string) (domain.Account, string, error) {
	ident, err := s.Verifier.Verify(rawInitData)
	if err != nil {
		return domain.Account{}, "", err
	}

	acct, err := s.Resolve(ctx, ident)
	if err != nil {
		return domain.Account{}, "", err
	}

	username := ""
	if acct.Username != nil {
		username = *acct.Username
	}
	token, err := s.Sessions.Mint(acct.TelegramUserID, username, time.Now())
	if err != nil {
		return domain.Account{}, "", fmt.Errorf("mint session token: %w", err)
	}

	return acct, token, nil
}

// Resolve fetches or creates the account for a verified identity. A create
// that loses a first-sight race against a concurrent request falls through
// to the update path instead of erroring; the store's unique key guarantees
// at most one row per Telegram user id.
func (s *AuthService) Resolve(ctx context.Context, ident initdata.Identity) (domain.Account, error) {
	acct, err := s.Store.Accounts().GetByTelegramID(ctx, ident.TelegramUserID)
	switch {
	case err == nil:
		// fall through to reconcile

	case errors.Is(err, store.ErrNotFound):
		created, err := s.Store.Accounts().Create(ctx, newAccount(ident))
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, store.ErrAlreadyExists) {
			return domain.Account{}, fmt.Errorf("create account: %w", err)
		}
		// Lost the race; the row exists now.
		acct, err = s.Store.Accounts().GetByTelegramID(ctx, ident.TelegramUserID)
		if err != nil {
			return domain.Account{}, fmt.Errorf("reload account after create race: %w", err)
		}

	default:
		return domain.Account{}, fmt.Errorf("load account: %w", err)
	}

	patch := profileDiff(acct, ident)
	if patch.IsZero() {
		return acct, nil
	}

	updated, err := s.Store.Accounts().UpdateProfile(ctx, acct.TelegramUserID, patch)
	if err != nil {
		return domain.Account{}, fmt.Errorf("reconcile profile: %w", err)
	}
	return updated, nil
}

// newAccount builds a first-sight record. Wallet containers start empty (the
// store fills in '{}') so downstream CRUD never observes missing keys; the
// referral code is captured here and never afterwards.
func newAccount(ident initdata.Identity) domain.Account {
	a := domain.Account{TelegramUserID: ident.TelegramUserID}
	a.Username = optional(ident.Username)
	a.FirstName = optional(ident.FirstName)
	a.LastName = optional(ident.LastName)
	a.AvatarURL = optional(ident.AvatarURL)
	a.ReferredBy = optional(ident.ReferralCode)
	return a
}

// profileDiff returns a patch carrying only the fields whose supplied value
// is present and differs from the stored one. PIN and wallet state are never
// part of the patch; those belong to their own services.
func profileDiff(acct domain.Account, ident initdata.Identity) store.ProfilePatch {
	var patch store.ProfilePatch
	if changed(acct.Username, ident.Username) {
		patch.Username = &ident.Username
	}
	if changed(acct.FirstName, ident.FirstName) {
		patch.FirstName = &ident.FirstName
	}
	if changed(acct.LastName, ident.LastName) {
		patch.LastName = &ident.LastName
	}
	if changed(acct.AvatarURL, ident.AvatarURL) {
		patch.AvatarURL = &ident.AvatarURL
	}
	return patch
}

// changed reports whether a non-empty supplied value differs from the stored
// one. An empty supplied value means "absent from the payload" and never
// clears a stored field.
func changed(stored *string, supplied string) bool {
	if supplied == "" {
		return false
	}
	return stored == nil || *stored != supplied
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
