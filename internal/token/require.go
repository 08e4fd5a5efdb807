package token

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/securevault/secureserver/internal/crypto"
	"github.com/securevault/secureserver/internal/logging"
	"github.com/securevault/secureserver/internal/store"
)

// Cookie names of the web surface.
const (
	CookieAuthToken = "auth_token"
	CookieAuthKey   = "auth_key"
	CookieCSRF      = "csrf_token"
)

// CSRFHeader carries the CSRF secret on mutating requests.
const CSRFHeader = "X-CSRF-Token"

// Grant is the proof carried through a request after the guard admits it.
// LoginSecret enables on-demand KEK derivation, e.g. unwrapping the vault
// master key without re-asking for the password.
type Grant struct {
	User        *store.User
	Token       *store.Token
	LoginSecret []byte
}

// Require authenticates a request from its cookies: the bearer token must
// resolve to a live entry and the auth_key cookie must decrypt to the
// AUTHORIZED marker under the session-bound KEK. Failures return the guard
// errors from errors.go.
func (e *Engine) Require(ctx context.Context, r *http.Request) (*Grant, error) {
	tokenCookie, err := r.Cookie(CookieAuthToken)
	if err != nil || tokenCookie.Value == "" {
		return nil, ErrNoTokenCookie
	}

	user, entry, err := e.Validate(ctx, tokenCookie.Value)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	keyCookie, err := r.Cookie(CookieAuthKey)
	if err != nil || keyCookie.Value == "" {
		return nil, ErrNoAuthKey
	}

	loginSecret, ok := e.sessions.Get(entry.SessionID)
	if !ok {
		return nil, ErrSessionExpired
	}

	kek, err := crypto.DeriveKEK(ctx, loginSecret, user.Salt, entry.SessionID)
	if err != nil {
		return nil, err
	}
	marker, err := crypto.Decrypt(kek, keyCookie.Value)
	if err != nil || string(marker) != AuthorizedMarker {
		e.logger().Warn("auth key rejected",
			logging.UserID(user.ID),
			logging.Token(entry.SafeLog),
		)
		return nil, ErrInvalidAuthKey
	}

	return &Grant{User: user, Token: entry, LoginSecret: loginSecret}, nil
}

// VerifyCSRF checks the CSRF header against the token's stored secret in
// constant time.
func VerifyCSRF(r *http.Request, entry *store.Token) error {
	header := r.Header.Get(CSRFHeader)
	if header == "" {
		return ErrMissingCSRF
	}
	if subtle.ConstantTimeCompare([]byte(header), []byte(entry.CSRF)) != 1 {
		return ErrInvalidCSRF
	}
	return nil
}
