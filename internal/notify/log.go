package notify

import (
	"context"
	"log/slog"

	"github.com/securevault/secureserver/internal/logging"
)

// LogSender writes notifications to the log instead of a real channel. It
// serves as the SMS channel when no gateway is configured and as the email
// channel in development.
type LogSender struct {
	channel string
	log     *slog.Logger
}

// NewLogSender creates a sender that logs under the given channel name.
func NewLogSender(channel string, log *slog.Logger) *LogSender {
	return &LogSender{channel: channel, log: log}
}

func (s *LogSender) Send(_ context.Context, to string, msg Message) error {
	s.log.Info("notification",
		logging.Component("notify"),
		slog.String("channel", s.channel),
		slog.String("to", logging.Sanitize(to)),
		slog.String("subject", msg.Subject),
	)
	return nil
}
