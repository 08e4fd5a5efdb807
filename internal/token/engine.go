// Package token implements the bearer-token lifecycle: issuance bound to an
// in-memory session, validation with lazy expiry purging, the auth_key
// cookie proof, CSRF verification and revocation.
//
// The auth_key cookie is the AEAD encryption of the literal marker
// "AUTHORIZED" under a KEK derived from the session's login secret and the
// session id. Decrypting it on a later request therefore requires the
// server-side session memory; a stolen cookie is useless on its own and a
// process restart invalidates every cookie in circulation.
package token

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/securevault/secureserver/internal/config"
	"github.com/securevault/secureserver/internal/crypto"
	"github.com/securevault/secureserver/internal/logging"
	"github.com/securevault/secureserver/internal/session"
	"github.com/securevault/secureserver/internal/store"
)

// AuthorizedMarker is the plaintext sealed into the auth_key cookie.
const AuthorizedMarker = "AUTHORIZED"

const csrfLen = 32

// Engine issues and validates bearer tokens.
type Engine struct {
	store    *store.Store
	sessions *session.Store
	keys     config.Keys
	log      *slog.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates a token engine over the given durable store and session
// store.
func NewEngine(st *store.Store, sessions *session.Store, keys config.Keys, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		sessions: sessions,
		keys:     keys,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Credentials is what Issue hands back for the three auth cookies.
type Credentials struct {
	// Token is the plaintext bearer token. It is returned exactly once and
	// never persisted.
	Token string
	// AuthKey is the sealed AUTHORIZED marker for the auth_key cookie.
	AuthKey string
	// CSRF is the hex CSRF secret mirrored in the csrf_token cookie.
	CSRF string
}

// Issue creates a fresh session and token for a user. All prior tokens of
// that user and all expired tokens are dropped in the same write.
func (e *Engine) Issue(ctx context.Context, userID, password string, ttl time.Duration) (Credentials, error) {
	users, err := e.store.LoadUsers()
	if err != nil {
		return Credentials{}, err
	}
	user := store.FindUserByID(users, userID)
	if user == nil {
		return Credentials{}, ErrUserNotFound
	}

	loginSecret, err := crypto.DeriveLoginSecret(ctx, password, user.Salt)
	if err != nil {
		return Credentials{}, err
	}

	sessionID := uuid.NewString()
	e.sessions.Create(sessionID, loginSecret)

	csrf, err := crypto.RandomHex(csrfLen)
	if err != nil {
		return Credentials{}, err
	}

	plain := uuid.NewString()
	now := e.now().Unix()

	kek, err := crypto.DeriveKEK(ctx, loginSecret, user.Salt, sessionID)
	if err != nil {
		return Credentials{}, err
	}
	authKey, err := crypto.Encrypt(kek, []byte(AuthorizedMarker))
	if err != nil {
		return Credentials{}, err
	}

	entry := &store.Token{
		ID:        crypto.TokenDigest(e.keys.Encapsulation, plain),
		UserID:    userID,
		Exp:       now + int64(ttl.Seconds()),
		AuthTime:  now,
		SessionID: sessionID,
		CSRF:      csrf,
		SafeLog:   SafeLog(plain),
	}

	err = e.store.UpdateTokens(func(tokens []*store.Token) ([]*store.Token, error) {
		kept := tokens[:0]
		for _, t := range tokens {
			if t.Exp > now && t.UserID != userID {
				kept = append(kept, t)
			}
		}
		return append(kept, entry), nil
	})
	if err != nil {
		return Credentials{}, err
	}

	return Credentials{Token: plain, AuthKey: authKey, CSRF: csrf}, nil
}

// Validate resolves a plaintext token to its user and persisted entry,
// purging expired entries as a side effect. An unknown or expired token
// yields (nil, nil, nil).
func (e *Engine) Validate(ctx context.Context, plain string) (*store.User, *store.Token, error) {
	digest := crypto.TokenDigest(e.keys.Encapsulation, plain)
	now := e.now().Unix()

	var entry *store.Token
	err := e.store.UpdateTokens(func(tokens []*store.Token) ([]*store.Token, error) {
		kept := tokens[:0]
		for _, t := range tokens {
			if t.Exp <= now {
				continue
			}
			kept = append(kept, t)
			if t.ID == digest {
				entry = t
			}
		}
		return kept, nil
	})
	if err != nil {
		return nil, nil, err
	}
	if entry == nil {
		return nil, nil, nil
	}

	users, err := e.store.LoadUsers()
	if err != nil {
		return nil, nil, err
	}
	user := store.FindUserByID(users, entry.UserID)
	if user == nil {
		return nil, nil, nil
	}
	return user, entry, nil
}

// RemoveAll revokes every token of a user and destroys the owning sessions.
func (e *Engine) RemoveAll(userID string) error {
	return e.store.UpdateTokens(func(tokens []*store.Token) ([]*store.Token, error) {
		kept := tokens[:0]
		for _, t := range tokens {
			if t.UserID == userID {
				e.sessions.Destroy(t.SessionID)
				continue
			}
			kept = append(kept, t)
		}
		return kept, nil
	})
}

// RemoveByDigest revokes a single token by its stored id.
func (e *Engine) RemoveByDigest(digest string) error {
	return e.store.UpdateTokens(func(tokens []*store.Token) ([]*store.Token, error) {
		kept := tokens[:0]
		for _, t := range tokens {
			if t.ID == digest {
				e.sessions.Destroy(t.SessionID)
				continue
			}
			kept = append(kept, t)
		}
		return kept, nil
	})
}

// SafeLog redacts a plaintext token down to its last four characters, the
// only form that may appear in logs.
func SafeLog(plain string) string {
	if len(plain) < 4 {
		return "***"
	}
	return "***" + plain[len(plain)-4:]
}

func (e *Engine) logger() *slog.Logger { return e.log.With(logging.Component("token")) }
