package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/securevault/secureserver/internal/auth"
	"github.com/securevault/secureserver/internal/config"
	"github.com/securevault/secureserver/internal/httpapi"
	"github.com/securevault/secureserver/internal/logging"
	"github.com/securevault/secureserver/internal/metrics"
	"github.com/securevault/secureserver/internal/notify"
	"github.com/securevault/secureserver/internal/ratelimiter"
	"github.com/securevault/secureserver/internal/session"
	"github.com/securevault/secureserver/internal/store"
	"github.com/securevault/secureserver/internal/token"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg config.Config
	config.MustLoad(&cfg)

	log := logging.New(logging.Config{File: cfg.LogFile, Console: true})

	if cfg.ReplaceCorruptedFiles {
		log.Warn("REPLACE_CORRUPTED_FILES is enabled; corrupted data files will be reset. Disable outside of debugging.")
	}

	st, err := store.New(cfg.DataDir, cfg.Keys,
		store.WithReplaceCorrupted(cfg.ReplaceCorruptedFiles),
		store.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("open data store: %w", err)
	}

	sessions := session.New()
	tokens := token.NewEngine(st, sessions, cfg.Keys, token.WithLogger(log))

	notifier := buildNotifier(cfg, log)

	accounts := auth.NewService(st, tokens, cfg,
		auth.WithLogger(log),
		auth.WithNotifier(notifier),
	)
	if err := accounts.EnsureTemplateUser(ctx); err != nil {
		return fmt.Errorf("ensure template user: %w", err)
	}

	limiter := ratelimiter.New(ratelimiter.WithLogger(log))
	m := metrics.New()

	api := httpapi.New(accounts, tokens, limiter, cfg,
		httpapi.WithLogger(log),
		httpapi.WithMetrics(m),
	)

	if err := writePIDFile(cfg.PIDFile); err != nil {
		return err
	}
	defer removePIDFile(cfg.PIDFile, log)

	addr := net.JoinHostPort(cfg.ServerHost, strconv.Itoa(cfg.ServerPort))
	if cfg.UseHTTPS {
		addr = net.JoinHostPort(cfg.HTTPSHost, strconv.Itoa(cfg.HTTPSPort))
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening",
			logging.Component("server"),
			logging.File(addr),
		)
		var err error
		if cfg.UseHTTPS {
			err = srv.ListenAndServeTLS(cfg.SSLCertFile, cfg.SSLKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(limiter.Run(gctx))

	g.Go(func() error {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if removed := sessions.CleanupExpired(); removed > 0 {
					log.Debug("expired sessions removed", logging.Component("session"))
				}
			}
		}
	})

	err = g.Wait()
	log.Info("server stopped", logging.Component("server"), logging.Error(err))
	return err
}

// buildNotifier wires the notification channels: real SMTP when credentials
// are configured, log-only senders otherwise so development runs still show
// what would be sent.
func buildNotifier(cfg config.Config, log *slog.Logger) *notify.Service {
	opts := []notify.Option{
		notify.WithLogger(log),
		notify.WithSMSSender(notify.NewLogSender("sms", log)),
	}

	if cfg.SMTPUsername != "" && cfg.SMTPPassword != "" {
		from := cfg.FromEmail
		if from == "" {
			from = cfg.SMTPUsername
		}
		sender, err := notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTPServer,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     from,
		})
		if err != nil {
			log.Warn("smtp sender misconfigured, falling back to log output", logging.Error(err))
			opts = append(opts, notify.WithEmailSender(notify.NewLogSender("email", log)))
		} else {
			opts = append(opts, notify.WithEmailSender(sender))
		}
	} else {
		opts = append(opts, notify.WithEmailSender(notify.NewLogSender("email", log)))
	}

	return notify.NewService(opts...)
}

func removePIDFile(path string, log *slog.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("could not remove pid file", logging.File(path), logging.Error(err))
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}
