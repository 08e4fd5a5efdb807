// Package httpapi exposes the public web surface: signup, login, logout,
// two-factor management, vault read/write, password change and the admin
// user listing, plus the Prometheus scrape endpoint. Every route carries
// the security headers and a per-client rate budget.
package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/securevault/secureserver/internal/auth"
	"github.com/securevault/secureserver/internal/config"
	"github.com/securevault/secureserver/internal/logging"
	"github.com/securevault/secureserver/internal/metrics"
	"github.com/securevault/secureserver/internal/ratelimiter"
	"github.com/securevault/secureserver/internal/token"
)

// Per-route rate budgets by client IP.
var (
	budgetSignup     = ratelimiter.PerMinute(10)
	budgetLogin      = ratelimiter.PerMinute(6)
	budgetLogout     = ratelimiter.PerMinute(10)
	budgetEnable2FA  = ratelimiter.PerHour(6)
	budgetDisable2FA = ratelimiter.PerHour(1)
	budgetVaultWrite = ratelimiter.PerMinute(3)
	budgetPWChange   = ratelimiter.Per(3, 7*24*time.Hour)
	budgetReads      = ratelimiter.PerMinute(5)
)

// Handler owns the HTTP surface.
type Handler struct {
	accounts *auth.Service
	tokens   *token.Engine
	limiter  *ratelimiter.Limiter
	metrics  *metrics.Metrics
	cfg      config.Config
	log      *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithMetrics attaches the Prometheus collectors and the /metrics route.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// New assembles the HTTP surface.
func New(accounts *auth.Service, tokens *token.Engine, limiter *ratelimiter.Limiter, cfg config.Config, opts ...Option) *Handler {
	h := &Handler{
		accounts: accounts,
		tokens:   tokens,
		limiter:  limiter,
		cfg:      cfg,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the fully wired handler.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /signup", h.rateLimited("signup", budgetSignup, h.handleSignup))
	mux.HandleFunc("POST /login", h.rateLimited("login", budgetLogin, h.handleLogin))
	mux.HandleFunc("POST /logout", h.rateLimited("logout", budgetLogout,
		h.guarded(guardOpts{csrf: true}, h.handleLogout)))
	mux.HandleFunc("POST /enable_2fa", h.rateLimited("enable_2fa", budgetEnable2FA,
		h.guarded(guardOpts{csrf: true}, h.handleEnable2FA)))
	mux.HandleFunc("POST /disable_2fa", h.rateLimited("disable_2fa", budgetDisable2FA,
		h.guarded(guardOpts{csrf: true}, h.handleDisable2FA)))
	mux.HandleFunc("POST /set_vault_information", h.rateLimited("set_vault", budgetVaultWrite,
		h.guarded(guardOpts{csrf: true}, h.handleSetVault)))
	mux.HandleFunc("POST /change_password", h.rateLimited("change_password", budgetPWChange,
		h.guarded(guardOpts{csrf: true}, h.handleChangePassword)))
	mux.HandleFunc("GET /get_personal_information", h.rateLimited("personal_info", budgetReads,
		h.guarded(guardOpts{}, h.handlePersonalInfo)))
	mux.HandleFunc("GET /get_all_users", h.rateLimited("all_users", budgetReads,
		h.guarded(guardOpts{admin: true}, h.handleAllUsers)))

	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}

	return securityHeaders(mux)
}

type guardOpts struct {
	admin bool
	csrf  bool
}

// guarded enforces the auth-guard contract: a valid token and auth key,
// rejection of root accounts on this surface, frozen-account lockout with
// cookie clearing, the admin flag when demanded, and the CSRF header on
// mutating routes.
func (h *Handler) guarded(opts guardOpts, next func(w http.ResponseWriter, r *http.Request, grant *token.Grant)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grant, err := h.tokens.Require(r.Context(), r)
		if err != nil {
			if guardMessage := clientError(err); guardMessage != "" {
				fail(w, guardMessage)
				return
			}
			h.log.Error("auth guard failure", logging.Error(err))
			fail(w, genericFailure)
			return
		}

		if grant.User.Root {
			h.log.Warn("root user rejected on web surface", logging.Username(grant.User.Username))
			fail(w, "Unauthorized token.")
			return
		}
		if grant.User.Freeze {
			h.log.Warn("frozen user rejected", logging.Username(grant.User.Username))
			h.clearAuthCookies(w)
			fail(w, "Your account is disabled.")
			return
		}
		if opts.admin && !grant.User.Admin {
			h.log.Warn("admin route rejected", logging.Username(grant.User.Username))
			fail(w, "Unauthorized token.")
			return
		}
		if opts.csrf {
			if err := token.VerifyCSRF(r, grant.Token); err != nil {
				fail(w, err.Error())
				return
			}
		}

		next(w, r, grant)
	}
}

// clientError returns the client-facing message for guard and lifecycle
// errors, or "" for internal ones.
func clientError(err error) string {
	for _, known := range []error{
		token.ErrNoTokenCookie,
		token.ErrInvalidToken,
		token.ErrNoAuthKey,
		token.ErrSessionExpired,
		token.ErrInvalidAuthKey,
		token.ErrMissingCSRF,
		token.ErrInvalidCSRF,
		auth.ErrBadCredentials,
		auth.ErrUsernameTaken,
		auth.ErrInvalidUsername,
		auth.ErrInvalidPassword,
		auth.ErrStaleAuth,
		auth.Err2FAUnavailable,
		auth.Err2FAAlreadyEnabled,
		auth.Err2FANotEnabled,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return ""
}
