package auth

import (
	"io"
	"log/slog"
	"time"

	"github.com/securevault/secureserver/internal/config"
	"github.com/securevault/secureserver/internal/logging"
	"github.com/securevault/secureserver/internal/notify"
	"github.com/securevault/secureserver/internal/store"
	"github.com/securevault/secureserver/internal/token"
)

// adminTokenTTL bounds admin-surface sessions tighter than the configurable
// public token age.
const adminTokenTTL = 20 * time.Minute

// Service owns the account lifecycle over the durable store.
type Service struct {
	store    *store.Store
	tokens   *token.Engine
	notifier *notify.Service
	cfg      config.Config
	log      *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log.With(logging.Component("auth"))
		}
	}
}

// WithNotifier sets the out-of-band notification service.
func WithNotifier(n *notify.Service) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// updateUser applies a mutation to one user record under the users file
// lock.
func (s *Service) updateUser(id string, mutate func(u *store.User)) error {
	return s.store.UpdateUsers(func(users []*store.User) ([]*store.User, error) {
		u := store.FindUserByID(users, id)
		if u == nil {
			return nil, store.ErrUserNotFound
		}
		mutate(u)
		return users, nil
	})
}

// NewService creates the account service.
func NewService(st *store.Store, tokens *token.Engine, cfg config.Config, opts ...Option) *Service {
	s := &Service{
		store:  st,
		tokens: tokens,
		cfg:    cfg,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
