package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimitByIP(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}
	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		RateLimitByIP(cfg),
	)

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/pin/verify", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("allows up to burst then rejects", func(t *testing.T) {
		require.Equal(t, http.StatusOK, do("10.0.0.1"))
		require.Equal(t, http.StatusOK, do("10.0.0.1"))
		require.Equal(t, http.StatusTooManyRequests, do("10.0.0.1"))
	})

	t.Run("keys are independent per IP", func(t *testing.T) {
		require.Equal(t, http.StatusOK, do("10.0.0.2"))
	})

	t.Run("sets Retry-After on rejection", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/pin/verify", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
	})
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	t.Run("prefers X-Forwarded-For", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		req.RemoteAddr = "10.0.0.9:4444"
		require.Equal(t, "203.0.113.7", ClientIP(req))
	})

	t.Run("falls back to X-Real-IP", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-IP", "203.0.113.8")
		req.RemoteAddr = "10.0.0.9:4444"
		require.Equal(t, "203.0.113.8", ClientIP(req))
	})

	t.Run("strips port from RemoteAddr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.4:5555"
		require.Equal(t, "192.0.2.4", ClientIP(req))
	})
}
