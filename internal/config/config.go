// Package config loads the server configuration from environment variables
// and the project .env file, validates the required cryptographic keys, and
// supports persisting individual settings back to .env without disturbing
// the file's comments or ordering.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the server. Durations are expressed in
// seconds to match the environment contract of the deployment scripts.
type Config struct {
	AppName string `env:"APP_NAME" envDefault:"YourAppName"`

	ServerHost string `env:"SERVER_HOST" envDefault:"127.0.0.1"`
	ServerPort int    `env:"SERVER_PORT" envDefault:"8000"`
	HTTPSHost  string `env:"HTTPS_HOST" envDefault:"0.0.0.0"`
	HTTPSPort  int    `env:"HTTPS_PORT" envDefault:"443"`

	SSLCertFile string `env:"SSL_CERT_FILE"`
	SSLKeyFile  string `env:"SSL_KEY_FILE"`

	AllowedHosts []string `env:"ALLOWED_HOSTS" envDefault:"localhost,127.0.0.1,0.0.0.0"`

	ReplaceCorruptedFiles bool `env:"REPLACE_CORRUPTED_FILES" envDefault:"true"`
	UseHTTPS              bool `env:"USE_HTTPS" envDefault:"false"`

	LockoutLoginWindowSec int `env:"LOCKOUT_LOGIN_WINDOW" envDefault:"900"`
	PWChangeAuthWindowSec int `env:"PW_CHANGE_AUTH_WINDOW" envDefault:"120"`
	MaxLoginFailures      int `env:"MAX_LOGIN_FAILURES" envDefault:"5"`
	TokenAgeSec           int `env:"TOKEN_AGE" envDefault:"900"`

	Enable2FA  bool `env:"ENABLE_2FA" envDefault:"false"`
	Require2FA bool `env:"REQUIRE_2FA" envDefault:"false"`

	DefaultUser2FA bool `env:"DEFAULT_USER_2FA" envDefault:"false"`
	TakeFullName   bool `env:"DEFAULT_USER_TAKE_FULL_NAME" envDefault:"true"`
	TakeEmail      bool `env:"DEFAULT_USER_TAKE_EMAIL" envDefault:"false"`
	TakePhone      bool `env:"DEFAULT_USER_TAKE_PHONE" envDefault:"false"`

	TemplateUserEmail string `env:"TEMPLATE_USER_EMAIL" envDefault:"email@example.com"`
	TemplateUserPhone string `env:"TEMPLATE_USER_PHONE" envDefault:"1234567890"`

	SMTPServer   string `env:"SMTP_SERVER" envDefault:"smtp.gmail.com"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	FromEmail    string `env:"FROM_EMAIL"`

	DataDir string `env:"DATA_DIR" envDefault:"data"`
	LogFile string `env:"LOG_FILE" envDefault:"server.log"`
	PIDFile string `env:"PID_FILE" envDefault:"server.pid"`
	EnvFile string `env:"ENV_FILE" envDefault:".env"`

	Keys Keys `env:"-"`
}

// LockoutLoginWindow returns the lockout window as a duration.
func (c Config) LockoutLoginWindow() time.Duration {
	return time.Duration(c.LockoutLoginWindowSec) * time.Second
}

// PWChangeAuthWindow returns the password-change re-auth window as a duration.
func (c Config) PWChangeAuthWindow() time.Duration {
	return time.Duration(c.PWChangeAuthWindowSec) * time.Second
}

// TokenAge returns the token lifetime as a duration.
func (c Config) TokenAge() time.Duration {
	return time.Duration(c.TokenAgeSec) * time.Second
}

// CollectsContact reports whether any contact channel is collected at signup,
// which gates out-of-band notifications.
func (c Config) CollectsContact() bool {
	return c.TakeEmail || c.TakePhone
}

var loadEnvOnce sync.Once

// Load parses the configuration from the environment. The .env file is read
// once per process before the first parse; missing .env is not an error.
// The four cryptographic keys are required and validated here so that a
// misconfigured server refuses to start.
func Load(cfg *Config) error {
	loadEnvOnce.Do(func() {
		_ = godotenv.Load()
	})

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	keys, err := LoadKeys()
	if err != nil {
		return err
	}
	cfg.Keys = keys
	return nil
}

// MustLoad is Load that panics on failure, for use at startup.
func MustLoad(cfg *Config) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
