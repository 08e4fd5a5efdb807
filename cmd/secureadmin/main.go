// Command secureadmin is the privileged operator CLI. Every subcommand is a
// standalone invocation that takes a session token as its first positional
// argument and prints its result as JSON on stdout.
//
// Exit codes: 0 success, 1 authentication or logic error, 2 argument error.
// The login subcommand instead exits with the login state-machine code.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/securevault/secureserver/internal/admin"
	"github.com/securevault/secureserver/internal/auth"
	"github.com/securevault/secureserver/internal/config"
	"github.com/securevault/secureserver/internal/logging"
	"github.com/securevault/secureserver/internal/session"
	"github.com/securevault/secureserver/internal/store"
	"github.com/securevault/secureserver/internal/token"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// usageError marks argument-contract violations so main can exit 2 instead
// of 1.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != n {
			return usageErrorf("usage: %s", usage)
		}
		return nil
	}
}

func minArgs(n int, usage string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) < n {
			return usageErrorf("usage: %s", usage)
		}
		return nil
	}
}

// env bundles the services shared by every subcommand.
type env struct {
	cfg      config.Config
	store    *store.Store
	tokens   *token.Engine
	accounts *auth.Service
	admin    *admin.Service
}

func newEnv() (*env, error) {
	var cfg config.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}

	log := logging.New(logging.Config{File: cfg.LogFile})

	st, err := store.New(cfg.DataDir, cfg.Keys,
		store.WithReplaceCorrupted(cfg.ReplaceCorruptedFiles),
		store.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	sessions := session.New()
	tokens := token.NewEngine(st, sessions, cfg.Keys, token.WithLogger(log))

	return &env{
		cfg:      cfg,
		store:    st,
		tokens:   tokens,
		accounts: auth.NewService(st, tokens, cfg, auth.WithLogger(log)),
		admin:    admin.NewService(st, tokens, admin.WithLogger(log)),
	}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	root := &cobra.Command{
		Use:           "secureadmin",
		Short:         "Operator commands for the authentication and vault server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newLoginCmd(),
		newListUsersCmd(),
		newListSessionsCmd(),
		newListAttemptsCmd(),
		newLogoutUserCmd(),
		newLogoutCmd(),
		newLogoutAllCmd(),
		newClearAttemptsCmd(),
		newUserActionCmd(),
		newCreateUserCmd(),
		newSetConfigCmd(),
	)

	if err := root.Execute(); err != nil {
		var code loginExit
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		fmt.Fprintln(os.Stderr, err)
		var usage usageError
		if errors.As(err, &usage) {
			os.Exit(exitUsage)
		}
		os.Exit(exitError)
	}
	os.Exit(exitOK)
}
