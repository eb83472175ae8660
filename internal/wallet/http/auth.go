package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/telewallet/telewallet/internal/wallet/initdata"
	"github.com/telewallet/telewallet/internal/wallet/service"
	"github.com/telewallet/telewallet/pkg/httpx"
	"github.com/telewallet/telewallet/pkg/slogx"
)

// AuthHandler serves POST /v1/auth: verify the Telegram initData payload,
// upsert the account, and hand back a session token.
type AuthHandler struct {
	AuthService *service.AuthService
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InitData string `json:"initData"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InitData == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, AuthResponse{
			IsValid: false,
			Error:   "initData is required",
		})
		return
	}

	acct, token, err := h.AuthService.Login(r.Context(), req.InitData)
	switch {
	case err == nil:
		httpx.NoCache(w)
		httpx.WriteJSON(w, http.StatusOK, AuthResponse{
			IsValid:  true,
			UserData: userDataFromAccount(acct),
			Token:    token,
		})

	case errors.Is(err, initdata.ErrMalformed):
		httpx.WriteJSON(w, http.StatusBadRequest, AuthResponse{
			IsValid: false,
			Error:   "Malformed initData",
		})

	case errors.Is(err, initdata.ErrSignatureInvalid):
		// Not authenticated, not a fault. Tampering and a wrong bot token
		// look the same on purpose.
		httpx.WriteJSON(w, http.StatusOK, AuthResponse{
			IsValid: false,
			Error:   "Hash mismatch",
		})

	case errors.Is(err, initdata.ErrExpired):
		httpx.WriteJSON(w, http.StatusOK, AuthResponse{IsValid: false})

	default:
		slogx.FromContext(r.Context()).Error("auth login failed", "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, AuthResponse{
			IsValid: false,
			Error:   "internal error",
		})
	}
}
