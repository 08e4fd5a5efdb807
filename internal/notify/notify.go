// Package notify delivers out-of-band security notifications to users over
// their preferred contact channel, falling back to the other channel when
// the preferred one is not on file.
package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/securevault/secureserver/internal/logging"
	"github.com/securevault/secureserver/internal/store"
)

// ErrNoChannel means the user has neither an email address nor a phone
// number on file.
var ErrNoChannel = errors.New("no contact channel on file")

// Message is one notification to deliver.
type Message struct {
	Subject string
	Body    string
}

// Sender delivers a message to one address on one channel.
type Sender interface {
	Send(ctx context.Context, to string, msg Message) error
}

// Service routes notifications by the user's preferred contact method.
type Service struct {
	email Sender
	sms   Sender
	log   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEmailSender sets the email channel.
func WithEmailSender(s Sender) Option {
	return func(svc *Service) { svc.email = s }
}

// WithSMSSender sets the SMS channel.
func WithSMSSender(s Sender) Option {
	return func(svc *Service) { svc.sms = s }
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(svc *Service) {
		if log != nil {
			svc.log = log
		}
	}
}

// NewService creates a notification service. Channels without a configured
// sender are skipped during delivery.
func NewService(opts ...Option) *Service {
	svc := &Service{
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Notify delivers a message to the user, trying the preferred channel first
// and falling back to the other. Delivery failure is logged, not fatal:
// security notifications are best effort and must never fail the operation
// that triggered them.
func (svc *Service) Notify(ctx context.Context, user *store.User, msg Message) {
	log := svc.log.With(logging.Component("notify"), logging.Username(user.Username))

	if err := svc.deliver(ctx, user, msg); err != nil {
		log.Warn("notification not delivered", logging.Error(err))
		return
	}
	log.Info("notification delivered", logging.Action(msg.Subject))
}

func (svc *Service) deliver(ctx context.Context, user *store.User, msg Message) error {
	channels := svc.channelOrder(user)
	if len(channels) == 0 {
		return ErrNoChannel
	}

	var errs []error
	for _, ch := range channels {
		if err := ch.sender.Send(ctx, ch.to, msg); err != nil {
			errs = append(errs, err)
			continue
		}
		return nil
	}
	return errors.Join(errs...)
}

type channel struct {
	sender Sender
	to     string
}

func (svc *Service) channelOrder(user *store.User) []channel {
	var emailCh, smsCh *channel
	if svc.email != nil && user.Email != "" {
		emailCh = &channel{sender: svc.email, to: user.Email}
	}
	if svc.sms != nil && user.Phone != "" {
		smsCh = &channel{sender: svc.sms, to: user.Phone}
	}

	var out []channel
	if user.PreferredContactMethod == "sms" {
		for _, ch := range []*channel{smsCh, emailCh} {
			if ch != nil {
				out = append(out, *ch)
			}
		}
		return out
	}
	for _, ch := range []*channel{emailCh, smsCh} {
		if ch != nil {
			out = append(out, *ch)
		}
	}
	return out
}
