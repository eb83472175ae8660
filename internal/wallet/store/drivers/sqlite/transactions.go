package sqlite

import (
	"context"
	"time"

	"github.com/telewallet/telewallet/internal/wallet/domain"
)

type transactionsRepo struct {
	q querier
}

func (r *transactionsRepo) Upsert(ctx context.Context, t domain.Transaction) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO account_transactions (id, telegram_user_id, network, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			network = excluded.network,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		t.ID, t.TelegramUserID, t.Network, string(t.Payload), now, now,
	)
	return mapMissingParent(err)
}

func (r *transactionsRepo) ListByTelegramID(ctx context.Context, telegramUserID int64) ([]domain.Transaction, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, telegram_user_id, network, payload, created_at, updated_at
		 FROM account_transactions
		 WHERE telegram_user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		telegramUserID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var (
			t       domain.Transaction
			payload string
		)
		if err := rows.Scan(&t.ID, &t.TelegramUserID, &t.Network, &payload, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.Payload = []byte(payload)
		out = append(out, t)
	}
	return out, rows.Err()
}
