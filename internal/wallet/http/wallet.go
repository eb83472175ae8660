package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/telewallet/telewallet/internal/wallet/service"
	"github.com/telewallet/telewallet/pkg/httpx"
	"github.com/telewallet/telewallet/pkg/slogx"
)

// WalletHandler serves the /v1/wallet endpoints. All of them sit behind the
// session middleware; the account is the one named by the token's subject.
type WalletHandler struct {
	WalletService *service.WalletService
}

// HandleGet serves GET /v1/wallet.
func (h *WalletHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpx.TelegramUserIDFromContext(r.Context())

	acct, err := h.WalletService.Get(r.Context(), userID)
	switch {
	case err == nil:
		httpx.NoCache(w)
		httpx.WriteJSON(w, http.StatusOK, userDataFromAccount(acct))

	case errors.Is(err, service.ErrAccountNotFound):
		httpx.WriteJSON(w, http.StatusNotFound, StatusResponse{
			Success: false,
			Error:   err.Error(),
		})

	default:
		h.serverError(w, r, "get wallet failed", err)
	}
}

// HandleSaveAddresses serves PUT /v1/wallet/addresses.
func (h *WalletHandler) HandleSaveAddresses(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WalletAddresses json.RawMessage `json:"wallet_addresses"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	userID, _ := httpx.TelegramUserIDFromContext(r.Context())
	h.respondSave(w, r, "save addresses failed",
		h.WalletService.SaveAddresses(r.Context(), userID, req.WalletAddresses))
}

// HandleSaveBalances serves PUT /v1/wallet/balances.
func (h *WalletHandler) HandleSaveBalances(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TokenBalances json.RawMessage `json:"token_balances"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}

	userID, _ := httpx.TelegramUserIDFromContext(r.Context())
	h.respondSave(w, r, "save balances failed",
		h.WalletService.SaveBalances(r.Context(), userID, req.TokenBalances))
}

// HandleListTransactions serves GET /v1/wallet/transactions.
func (h *WalletHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpx.TelegramUserIDFromContext(r.Context())

	txns, err := h.WalletService.ListTransactions(r.Context(), userID)
	if err != nil {
		h.serverError(w, r, "list transactions failed", err)
		return
	}

	payloads := make([]json.RawMessage, 0, len(txns))
	for _, t := range txns {
		payloads = append(payloads, t.Payload)
	}
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, TransactionsResponse{
		Success:      true,
		Transactions: payloads,
	})
}

// HandleSaveTransaction serves POST /v1/wallet/transactions. A top-level
// network field overrides the one embedded in the transaction payload.
func (h *WalletHandler) HandleSaveTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transaction json.RawMessage `json:"transaction"`
		Network     string          `json:"network"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Transaction) == 0 {
		h.badRequest(w, "transaction is required")
		return
	}

	payload := req.Transaction
	if req.Network != "" {
		merged, err := setJSONField(payload, "network", req.Network)
		if err != nil {
			h.badRequest(w, service.ErrInvalidPayload.Error())
			return
		}
		payload = merged
	}

	userID, _ := httpx.TelegramUserIDFromContext(r.Context())
	_, err := h.WalletService.SaveTransaction(r.Context(), userID, payload)
	h.respondSave(w, r, "save transaction failed", err)
}

// HandleSaveSeed serves PUT /v1/wallet/seed.
func (h *WalletHandler) HandleSaveSeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SeedPhrase string `json:"seed_phrase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SeedPhrase == "" {
		h.badRequest(w, "seed_phrase is required")
		return
	}

	userID, _ := httpx.TelegramUserIDFromContext(r.Context())
	h.respondSave(w, r, "save seed failed",
		h.WalletService.SaveSeed(r.Context(), userID, req.SeedPhrase))
}

// HandleGetSeed serves GET /v1/wallet/seed.
func (h *WalletHandler) HandleGetSeed(w http.ResponseWriter, r *http.Request) {
	userID, _ := httpx.TelegramUserIDFromContext(r.Context())

	phrase, err := h.WalletService.GetSeed(r.Context(), userID)
	switch {
	case err == nil:
		httpx.NoCache(w)
		httpx.WriteJSON(w, http.StatusOK, SeedResponse{
			Success:    true,
			SeedPhrase: phrase,
		})

	case errors.Is(err, service.ErrSeedNotSet), errors.Is(err, service.ErrAccountNotFound):
		httpx.WriteJSON(w, http.StatusNotFound, SeedResponse{
			Success: false,
			Error:   err.Error(),
		})

	default:
		h.serverError(w, r, "get seed failed", err)
	}
}

func (h *WalletHandler) respondSave(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, StatusResponse{Success: true})

	case errors.Is(err, service.ErrInvalidPayload):
		h.badRequest(w, err.Error())

	case errors.Is(err, service.ErrAccountNotFound):
		httpx.WriteJSON(w, http.StatusNotFound, StatusResponse{
			Success: false,
			Error:   err.Error(),
		})

	default:
		h.serverError(w, r, msg, err)
	}
}

func (h *WalletHandler) badRequest(w http.ResponseWriter, msg string) {
	httpx.WriteJSON(w, http.StatusBadRequest, StatusResponse{Success: false, Error: msg})
}

func (h *WalletHandler) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slogx.FromContext(r.Context()).Error(msg, "error", err)
	httpx.WriteJSON(w, http.StatusInternalServerError, StatusResponse{
		Success: false,
		Error:   "internal error",
	})
}

// setJSONField returns payload with field set to value; payload must be a
// JSON object.
func setJSONField(payload json.RawMessage, field, value string) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("not a JSON object")
	}
	quoted, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	obj[field] = quoted
	return json.Marshal(obj)
}
