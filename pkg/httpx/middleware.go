package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/telewallet/telewallet/pkg/jwtx"
	"github.com/telewallet/telewallet/pkg/slogx"
)

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares to h so that the first listed middleware is the
// outermost one.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type ctxKey string

const (
	// CtxKeyTelegramUserID carries the authenticated Telegram user id (int64).
	CtxKeyTelegramUserID ctxKey = "telegram_user_id"
	// CtxKeyClaims carries the full session claims when needed downstream.
	CtxKeyClaims ctxKey = "claims"
)

// TelegramUserIDFromContext returns the authenticated Telegram user id, if any.
func TelegramUserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(CtxKeyTelegramUserID).(int64)
	return id, ok
}

// SessionMiddleware verifies the Bearer session token and injects the
// authenticated Telegram user id into the request context.
func SessionMiddleware(signer *jwtx.Signer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			claims, err := signer.Verify(raw)
			if err != nil {
				log.Warn("session token rejected", "err", err)
				writeBearerError(w, "token verification failed")
				return
			}

			userID, err := claims.TelegramUserID()
			if err != nil {
				writeBearerError(w, "malformed subject")
				return
			}

			ctx = context.WithValue(ctx, CtxKeyTelegramUserID, userID)
			ctx = context.WithValue(ctx, CtxKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RFC 6750-style error response for bearer auth failures.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
