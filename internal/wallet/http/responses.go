package http

import (
	"encoding/json"
	"time"

	"github.com/telewallet/telewallet/internal/wallet/domain"
)

// AuthResponse is the POST /v1/auth body. A failed verification is still an
// HTTP 200 with isValid false; only malformed requests and server faults get
// error status codes.
type AuthResponse struct {
	IsValid  bool      `json:"isValid"`
	UserData *UserData `json:"userData,omitempty"`
	Token    string    `json:"token,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// UserData is the account record as clients see it. The PIN hash and the
// sealed seed never appear here.
type UserData struct {
	TelegramUserID  int64           `json:"telegram_user_id"`
	Username        *string         `json:"username,omitempty"`
	FirstName       *string         `json:"first_name,omitempty"`
	LastName        *string         `json:"last_name,omitempty"`
	AvatarURL       *string         `json:"avatar_url,omitempty"`
	WalletAddresses json.RawMessage `json:"wallet_addresses"`
	TokenBalances   json.RawMessage `json:"token_balances"`
	HasPin          bool            `json:"has_pin"`
	ReferredBy      *string         `json:"referred_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func userDataFromAccount(a domain.Account) *UserData {
	return &UserData{
		TelegramUserID:  a.TelegramUserID,
		Username:        a.Username,
		FirstName:       a.FirstName,
		LastName:        a.LastName,
		AvatarURL:       a.AvatarURL,
		WalletAddresses: a.WalletAddresses,
		TokenBalances:   a.TokenBalances,
		HasPin:          a.HasPin(),
		ReferredBy:      a.ReferredBy,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

// StatusResponse is the generic success/error body shared by the PIN and
// wallet mutation endpoints.
type StatusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// PinCheckResponse is the POST /v1/pin/check body.
type PinCheckResponse struct {
	Success bool `json:"success"`
	HasPin  bool `json:"hasPin"`
}

// TransactionsResponse is the GET /v1/wallet/transactions body, newest first.
type TransactionsResponse struct {
	Success      bool              `json:"success"`
	Transactions []json.RawMessage `json:"transactions"`
}

// SeedResponse is the GET /v1/wallet/seed body.
type SeedResponse struct {
	Success    bool   `json:"success"`
	SeedPhrase string `json:"seed_phrase,omitempty"`
	Error      string `json:"error,omitempty"`
}
