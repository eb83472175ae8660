package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/telewallet/telewallet/internal/wallet/domain"
	"github.com/telewallet/telewallet/internal/wallet/store"
	"github.com/telewallet/telewallet/pkg/cryptox"
	"github.com/telewallet/telewallet/pkg/idx"
)

const defaultNetwork = "mainnet"

// WalletService persists per-account wallet data: address and balance maps,
// the sealed seed phrase, and the transaction log. Seed phrases are sealed
// with SeedSecret before they touch the store and opened on the way out.
type WalletService struct {
	Store      store.Store
	SeedSecret []byte
}

// Get loads the account's wallet view.
func (s *WalletService) Get(ctx context.Context, telegramUserID int64) (domain.Account, error) {
	acct, err := s.Store.Accounts().GetByTelegramID(ctx, telegramUserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("load account: %w", err)
	}
	return acct, nil
}

// SaveAddresses replaces the account's wallet address map. The payload must
// be a JSON object keyed by network.
func (s *WalletService) SaveAddresses(ctx context.Context, telegramUserID int64, addresses json.RawMessage) error {
	if err := requireJSONObject(addresses); err != nil {
		return err
	}
	return s.ensureAccount(ctx, telegramUserID, func(ctx context.Context) error {
		_, err := s.Store.Accounts().UpdateWalletAddresses(ctx, telegramUserID, addresses)
		return err
	})
}

// SaveBalances replaces the account's token balance map.
func (s *WalletService) SaveBalances(ctx context.Context, telegramUserID int64, balances json.RawMessage) error {
	if err := requireJSONObject(balances); err != nil {
		return err
	}
	return s.ensureAccount(ctx, telegramUserID, func(ctx context.Context) error {
		_, err := s.Store.Accounts().UpdateTokenBalances(ctx, telegramUserID, balances)
		return err
	})
}

// SaveSeed seals the seed phrase and stores the opaque blob. The plaintext
// never reaches the store.
func (s *WalletService) SaveSeed(ctx context.Context, telegramUserID int64, seedPhrase string) error {
	sealed, err := cryptox.Seal(s.SeedSecret, seedPhrase)
	if err != nil {
		return fmt.Errorf("seal seed phrase: %w", err)
	}
	return s.ensureAccount(ctx, telegramUserID, func(ctx context.Context) error {
		return s.Store.Accounts().UpdateSeedPhrase(ctx, telegramUserID, sealed)
	})
}

// GetSeed opens and returns the stored seed phrase, or ErrSeedNotSet when
// the account has none.
func (s *WalletService) GetSeed(ctx context.Context, telegramUserID int64) (string, error) {
	acct, err := s.Get(ctx, telegramUserID)
	if err != nil {
		return "", err
	}
	if acct.SeedPhrase == nil {
		return "", ErrSeedNotSet
	}
	plain, err := cryptox.Open(s.SeedSecret, *acct.SeedPhrase)
	if err != nil {
		return "", fmt.Errorf("open seed phrase: %w", err)
	}
	return plain, nil
}

// SaveTransaction records a transaction, idempotently by its embedded id.
// A payload without an id gets a generated one; a missing network defaults
// to mainnet. Replays with the same id overwrite rather than duplicate.
func (s *WalletService) SaveTransaction(ctx context.Context, telegramUserID int64, payload json.RawMessage) (domain.Transaction, error) {
	if err := requireJSONObject(payload); err != nil {
		return domain.Transaction{}, err
	}

	var envelope struct {
		ID      string `json:"id"`
		Network string `json:"network"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return domain.Transaction{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if envelope.ID == "" {
		envelope.ID = idx.New().String()
	}
	if envelope.Network == "" {
		envelope.Network = defaultNetwork
	}

	txn := domain.Transaction{
		ID:             envelope.ID,
		TelegramUserID: telegramUserID,
		Network:        envelope.Network,
		Payload:        payload,
	}

	err := s.ensureAccount(ctx, telegramUserID, func(ctx context.Context) error {
		return s.Store.Transactions().Upsert(ctx, txn)
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return txn, nil
}

// ListTransactions returns the account's transactions, newest first.
func (s *WalletService) ListTransactions(ctx context.Context, telegramUserID int64) ([]domain.Transaction, error) {
	txns, err := s.Store.Transactions().ListByTelegramID(ctx, telegramUserID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

// ensureAccount runs op, creating a bare account first if the user has never
// authenticated a write before. The create can lose a race against a
// concurrent first write; ErrAlreadyExists means someone else won and the
// retry proceeds against the existing row.
func (s *WalletService) ensureAccount(ctx context.Context, telegramUserID int64, op func(context.Context) error) error {
	err := op(ctx)
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	_, err = s.Store.Accounts().Create(ctx, domain.Account{TelegramUserID: telegramUserID})
	if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return fmt.Errorf("create account: %w", err)
	}
	return op(ctx)
}

// requireJSONObject rejects payloads that are valid JSON but not objects,
// along with anything that fails to parse.
func requireJSONObject(raw json.RawMessage) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fmt.Errorf("%w: expected a JSON object", ErrInvalidPayload)
	}
	return nil
}
