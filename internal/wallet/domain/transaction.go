package domain

import (
	"encoding/json"
	"time"
)

// Transaction is one logged wallet transaction. The id is client-supplied so
// repeated saves of the same transaction stay idempotent; entries without an
// id get a ULID assigned by the service.
type Transaction struct {
	ID             string
	TelegramUserID int64
	Network        string
	Payload        json.RawMessage
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
