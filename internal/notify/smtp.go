package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// ErrFailedToSend wraps any SMTP transaction failure.
var ErrFailedToSend = errors.New("failed to send email")

// SMTPConfig configures the STARTTLS email sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers messages over SMTP with a STARTTLS upgrade. It is
// safe for concurrent use.
type SMTPSender struct {
	cfg  SMTPConfig
	auth smtp.Auth
}

// NewSMTPSender validates the configuration and returns a sender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp: host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("smtp: port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("smtp: credentials are required")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp: sender address is required")
	}
	return &SMTPSender{
		cfg:  cfg,
		auth: smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host),
	}, nil
}

// Send delivers one plain-text message to a recipient.
func (s *SMTPSender) Send(ctx context.Context, to string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrFailedToSend, err)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	client, err := smtp.Dial(addr)
	if err != nil {
		return errors.Join(ErrFailedToSend, fmt.Errorf("connect to smtp server: %w", err))
	}
	defer func() { _ = client.Close() }()

	if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
		return errors.Join(ErrFailedToSend, fmt.Errorf("start tls: %w", err))
	}
	if err := client.Auth(s.auth); err != nil {
		return errors.Join(ErrFailedToSend, fmt.Errorf("authenticate: %w", err))
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return errors.Join(ErrFailedToSend, fmt.Errorf("set sender: %w", err))
	}
	if err := client.Rcpt(to); err != nil {
		return errors.Join(ErrFailedToSend, fmt.Errorf("set recipient: %w", err))
	}

	w, err := client.Data()
	if err != nil {
		return errors.Join(ErrFailedToSend, err)
	}
	if _, err := w.Write(s.buildMessage(to, msg)); err != nil {
		_ = w.Close()
		return errors.Join(ErrFailedToSend, err)
	}
	if err := w.Close(); err != nil {
		return errors.Join(ErrFailedToSend, err)
	}
	return client.Quit()
}

func (s *SMTPSender) buildMessage(to string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + s.cfg.From + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}
