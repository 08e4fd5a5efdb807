// Package admin implements the privileged operations behind the admin CLI.
// Every operation resolves a session token to its user first and refuses
// callers without the developer-admin flag.
package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/securevault/secureserver/internal/logging"
	"github.com/securevault/secureserver/internal/store"
	"github.com/securevault/secureserver/internal/token"
)

var (
	// ErrUnauthorized means the session token did not resolve to a live
	// developer-admin session.
	ErrUnauthorized = errors.New("invalid or expired admin session")
	// ErrUnknownAction is returned for user-action verbs outside the fixed set.
	ErrUnknownAction = errors.New("unknown action")
)

// Service executes admin operations over the durable store.
type Service struct {
	store  *store.Store
	tokens *token.Engine
	log    *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log.With(logging.Component("admin"))
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the admin service.
func NewService(st *store.Store, tokens *token.Engine, opts ...Option) *Service {
	s := &Service{
		store:  st,
		tokens: tokens,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AuthenticateSession resolves a session token to its user and entry,
// requiring the developer-admin flag.
func (s *Service) AuthenticateSession(ctx context.Context, sessionToken string) (*store.User, *store.Token, error) {
	user, entry, err := s.tokens.Validate(ctx, sessionToken)
	if err != nil {
		return nil, nil, err
	}
	if user == nil || !user.DevAdmin {
		return nil, nil, ErrUnauthorized
	}
	return user, entry, nil
}
