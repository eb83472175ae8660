package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/telewallet/telewallet/internal/wallet/service"
	"github.com/telewallet/telewallet/pkg/httpx"
	"github.com/telewallet/telewallet/pkg/slogx"
)

// PinHandler serves the /v1/pin endpoints. These are keyed by the
// telegram_user_id in the body rather than a session: the PIN gate runs
// before the client holds a token.
type PinHandler struct {
	PinService *service.PinService
}

type pinRequest struct {
	TelegramUserID int64  `json:"telegram_user_id"`
	PinCode        string `json:"pin_code"`
}

func decodePinRequest(w http.ResponseWriter, r *http.Request) (pinRequest, bool) {
	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TelegramUserID == 0 {
		httpx.WriteJSON(w, http.StatusBadRequest, StatusResponse{
			Success: false,
			Error:   "telegram_user_id is required",
		})
		return pinRequest{}, false
	}
	return req, true
}

// HandleSet serves POST /v1/pin. Setting a PIN always succeeds for a known
// account, including while locked.
func (h *PinHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePinRequest(w, r)
	if !ok {
		return
	}

	err := h.PinService.Set(r.Context(), req.TelegramUserID, req.PinCode)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, StatusResponse{Success: true})

	case errors.Is(err, service.ErrInvalidPinFormat):
		httpx.WriteJSON(w, http.StatusBadRequest, StatusResponse{
			Success: false,
			Error:   err.Error(),
		})

	case errors.Is(err, service.ErrAccountNotFound):
		httpx.WriteJSON(w, http.StatusNotFound, StatusResponse{
			Success: false,
			Error:   err.Error(),
		})

	default:
		h.serverError(w, r, "set pin failed", err)
	}
}

// HandleCheck serves POST /v1/pin/check.
func (h *PinHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePinRequest(w, r)
	if !ok {
		return
	}

	has, err := h.PinService.Has(r.Context(), req.TelegramUserID)
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, PinCheckResponse{Success: true, HasPin: has})

	case errors.Is(err, service.ErrAccountNotFound):
		httpx.WriteJSON(w, http.StatusNotFound, StatusResponse{
			Success: false,
			Error:   err.Error(),
		})

	default:
		h.serverError(w, r, "check pin failed", err)
	}
}

// HandleVerify serves POST /v1/pin/verify. Wrong-PIN and locked outcomes are
// HTTP 200 with success false; the error text carries the remaining attempts
// or lock seconds so the client can display it directly.
func (h *PinHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePinRequest(w, r)
	if !ok {
		return
	}

	err := h.PinService.Verify(r.Context(), req.TelegramUserID, req.PinCode)

	var locked *service.PinLockedError
	var mismatch *service.PinMismatchError
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, StatusResponse{Success: true})

	case errors.As(err, &locked), errors.As(err, &mismatch),
		errors.Is(err, service.ErrPinNotSet):
		httpx.WriteJSON(w, http.StatusOK, StatusResponse{
			Success: false,
			Error:   err.Error(),
		})

	case errors.Is(err, service.ErrInvalidPinFormat):
		httpx.WriteJSON(w, http.StatusBadRequest, StatusResponse{
			Success: false,
			Error:   err.Error(),
		})

	case errors.Is(err, service.ErrAccountNotFound):
		httpx.WriteJSON(w, http.StatusNotFound, StatusResponse{
			Success: false,
			Error:   err.Error(),
		})

	default:
		h.serverError(w, r, "verify pin failed", err)
	}
}

func (h *PinHandler) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slogx.FromContext(r.Context()).Error(msg, "error", err)
	httpx.WriteJSON(w, http.StatusInternalServerError, StatusResponse{
		Success: false,
		Error:   "internal error",
	})
}
