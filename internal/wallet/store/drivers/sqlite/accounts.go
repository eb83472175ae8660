package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/telewallet/telewallet/internal/wallet/domain"
	"github.com/telewallet/telewallet/internal/wallet/store"
)

type accountsRepo struct {
	q querier
}

const accountColumns = `telegram_user_id, username, first_name, last_name, avatar_url,
	pin_code, pin_attempts, pin_locked_until,
	wallet_addresses, token_balances, seed_phrase, referred_by,
	created_at, updated_at`

func (r *accountsRepo) GetByTelegramID(ctx context.Context, telegramUserID int64) (domain.Account, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE telegram_user_id = ?`,
		telegramUserID,
	)
	return scanAccount(row)
}

func (r *accountsRepo) Create(ctx context.Context, a domain.Account) (domain.Account, error) {
	now := time.Now().UTC()
	if a.WalletAddresses == nil {
		a.WalletAddresses = json.RawMessage(`{}`)
	}
	if a.TokenBalances == nil {
		a.TokenBalances = json.RawMessage(`{}`)
	}

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO accounts (
			telegram_user_id, username, first_name, last_name, avatar_url,
			wallet_addresses, token_balances, referred_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.TelegramUserID,
		nullString(a.Username),
		nullString(a.FirstName),
		nullString(a.LastName),
		nullString(a.AvatarURL),
		string(a.WalletAddresses),
		string(a.TokenBalances),
		nullString(a.ReferredBy),
		now,
		now,
	)
	if err != nil {
		return domain.Account{}, mapConstraint(err)
	}

	return r.GetByTelegramID(ctx, a.TelegramUserID)
}

func (r *accountsRepo) UpdateProfile(ctx context.Context, telegramUserID int64, patch store.ProfilePatch) (domain.Account, error) {
	if patch.IsZero() {
		return r.GetByTelegramID(ctx, telegramUserID)
	}

	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	if patch.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, *patch.Username)
	}
	if patch.FirstName != nil {
		sets = append(sets, "first_name = ?")
		args = append(args, *patch.FirstName)
	}
	if patch.LastName != nil {
		sets = append(sets, "last_name = ?")
		args = append(args, *patch.LastName)
	}
	if patch.AvatarURL != nil {
		sets = append(sets, "avatar_url = ?")
		args = append(args, *patch.AvatarURL)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), telegramUserID)

	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts SET `+strings.Join(sets, ", ")+` WHERE telegram_user_id = ?`,
		args...,
	)
	if err != nil {
		return domain.Account{}, err
	}
	if err := requireAffected(res); err != nil {
		return domain.Account{}, err
	}

	return r.GetByTelegramID(ctx, telegramUserID)
}

func (r *accountsRepo) SetPin(ctx context.Context, telegramUserID int64, pin string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts
		 SET pin_code = ?, pin_attempts = 0, pin_locked_until = NULL, updated_at = ?
		 WHERE telegram_user_id = ?`,
		pin, time.Now().UTC(), telegramUserID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *accountsRepo) UpdatePinState(ctx context.Context, telegramUserID int64, attempts int, lockedUntil *time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts
		 SET pin_attempts = ?, pin_locked_until = ?, updated_at = ?
		 WHERE telegram_user_id = ?`,
		attempts, nullTime(lockedUntil), time.Now().UTC(), telegramUserID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *accountsRepo) UpdateWalletAddresses(ctx context.Context, telegramUserID int64, addresses json.RawMessage) (domain.Account, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts SET wallet_addresses = ?, updated_at = ? WHERE telegram_user_id = ?`,
		string(addresses), time.Now().UTC(), telegramUserID,
	)
	if err != nil {
		return domain.Account{}, err
	}
	if err := requireAffected(res); err != nil {
		return domain.Account{}, err
	}
	return r.GetByTelegramID(ctx, telegramUserID)
}

func (r *accountsRepo) UpdateTokenBalances(ctx context.Context, telegramUserID int64, balances json.RawMessage) (domain.Account, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts SET token_balances = ?, updated_at = ? WHERE telegram_user_id = ?`,
		string(balances), time.Now().UTC(), telegramUserID,
	)
	if err != nil {
		return domain.Account{}, err
	}
	if err := requireAffected(res); err != nil {
		return domain.Account{}, err
	}
	return r.GetByTelegramID(ctx, telegramUserID)
}

func (r *accountsRepo) UpdateSeedPhrase(ctx context.Context, telegramUserID int64, sealed string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts SET seed_phrase = ?, updated_at = ? WHERE telegram_user_id = ?`,
		sealed, time.Now().UTC(), telegramUserID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var (
		a               domain.Account
		username        sql.NullString
		firstName       sql.NullString
		lastName        sql.NullString
		avatarURL       sql.NullString
		pinCode         sql.NullString
		pinLockedUntil  sql.NullTime
		walletAddresses string
		tokenBalances   string
		seedPhrase      sql.NullString
		referredBy      sql.NullString
	)

	err := row.Scan(
		&a.TelegramUserID,
		&username,
		&firstName,
		&lastName,
		&avatarURL,
		&pinCode,
		&a.PinAttempts,
		&pinLockedUntil,
		&walletAddresses,
		&tokenBalances,
		&seedPhrase,
		&referredBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	a.Username = stringPtr(username)
	a.FirstName = stringPtr(firstName)
	a.LastName = stringPtr(lastName)
	a.AvatarURL = stringPtr(avatarURL)
	a.PinCode = stringPtr(pinCode)
	a.PinLockedUntil = timePtr(pinLockedUntil)
	a.WalletAddresses = json.RawMessage(walletAddresses)
	a.TokenBalances = json.RawMessage(tokenBalances)
	a.SeedPhrase = stringPtr(seedPhrase)
	a.ReferredBy = stringPtr(referredBy)
	return a, nil
}
