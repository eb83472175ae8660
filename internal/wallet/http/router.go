package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/telewallet/telewallet/internal/wallet/service"
	"github.com/telewallet/telewallet/internal/wallet/store"
	"github.com/telewallet/telewallet/pkg/httpx"
	"github.com/telewallet/telewallet/pkg/jwtx"
	"github.com/telewallet/telewallet/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	sessions     *jwtx.Signer
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store         store.Store
	AuthService   *service.AuthService
	PinService    *service.PinService
	WalletService *service.WalletService
}

func NewRouter(
	sessions *jwtx.Signer,
	corsOrigin, buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		sessions:     sessions,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain. The Mini App runs on a Telegram-hosted
	// origin, so CORS sits in front of everything.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		cors.Handler(cors.Options{
			AllowedOrigins: []string{corsOrigin},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerPin()
	r.registerWallet()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// Strict limit: each call runs an HMAC verification and may create rows.
	r.Mux.Handle("POST /v1/auth",
		httpx.Chain(&AuthHandler{AuthService: r.AuthService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerPin() {
	pinHandler := &PinHandler{PinService: r.PinService}

	// Strict limits across the board: these are authentication attempts.
	r.Mux.Handle("POST /v1/pin",
		httpx.Chain(http.HandlerFunc(pinHandler.HandleSet),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/pin/check",
		httpx.Chain(http.HandlerFunc(pinHandler.HandleCheck),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /v1/pin/verify",
		httpx.Chain(http.HandlerFunc(pinHandler.HandleVerify),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerWallet() {
	walletHandler := &WalletHandler{WalletService: r.WalletService}

	authed := func(h http.HandlerFunc) http.Handler {
		return httpx.Chain(h,
			httpx.SessionMiddleware(r.sessions),
			httpx.RateLimitByIP(httpx.LenientLimit),
		)
	}

	r.Mux.Handle("GET /v1/wallet", authed(walletHandler.HandleGet))
	r.Mux.Handle("PUT /v1/wallet/addresses", authed(walletHandler.HandleSaveAddresses))
	r.Mux.Handle("PUT /v1/wallet/balances", authed(walletHandler.HandleSaveBalances))
	r.Mux.Handle("GET /v1/wallet/transactions", authed(walletHandler.HandleListTransactions))
	r.Mux.Handle("POST /v1/wallet/transactions", authed(walletHandler.HandleSaveTransaction))
	r.Mux.Handle("PUT /v1/wallet/seed", authed(walletHandler.HandleSaveSeed))
	r.Mux.Handle("GET /v1/wallet/seed", authed(walletHandler.HandleGetSeed))
}

func (r *Router) registerSystem() {
	// Monitoring systems may poll frequently.
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
