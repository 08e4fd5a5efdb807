package main

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/securevault/secureserver/internal/auth"
	"github.com/securevault/secureserver/internal/config"
)

// loginExit carries the login state-machine code out of Execute as the
// process exit status. A zero code still has to travel as an error, so the
// type is returned for every login outcome.
type loginExit int

func (e loginExit) Error() string { return fmt.Sprintf("login result %d", int(e)) }

func newLoginCmd() *cobra.Command {
	var qrFile string

	cmd := &cobra.Command{
		Use:   "login <username> <password> [totp_code]",
		Short: "Authenticate on the admin surface and print a session token",
		Args:  minArgs(2, "login <username> <password> [totp_code]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}

			totp := ""
			if len(args) > 2 {
				totp = args[2]
			}

			res, err := e.accounts.Login(cmd.Context(), auth.SurfaceAdmin, args[0], args[1], totp)
			if err != nil {
				return err
			}

			out := map[string]any{"code": int(res.Code)}
			switch res.Code {
			case auth.CodeRootSuccess, auth.CodeSuccess:
				out["token"] = res.Credentials.Token
			case auth.CodeTOTPSetup:
				out["qr_data"] = res.Payload
				if qrFile != "" {
					if err := qrcode.WriteFile(res.Payload, qrcode.Medium, 256, qrFile); err != nil {
						return err
					}
					out["qr_file"] = qrFile
				}
			case auth.CodeLocked:
				out["message"] = res.Payload
			}
			if err := printJSON(out); err != nil {
				return err
			}
			return loginExit(res.Code)
		},
	}
	cmd.Flags().StringVar(&qrFile, "qr-file", "", "write the 2FA provisioning QR code to this PNG file")
	return cmd
}

func newListUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-users <session>",
		Short: "Print the redacted user listing",
		Args:  exactArgs(1, "list-users <session>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			users, err := e.admin.ListUsers(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(users)
		},
	}
}

func newListSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-sessions <session>",
		Short: "Print every live token joined to its user",
		Args:  exactArgs(1, "list-sessions <session>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			sessions, err := e.admin.ListSessions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(sessions)
		},
	}
}

func newListAttemptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-attempts <session>",
		Short: "Print the failed-login log",
		Args:  exactArgs(1, "list-attempts <session>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			attempts, err := e.admin.ListAttempts(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(attempts)
		},
	}
}

func newLogoutUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout-user <session> <user_id>",
		Short: "Revoke every token of one user",
		Args:  exactArgs(2, "logout-user <session> <user_id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			if err := e.admin.LogoutUser(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return printJSON(map[string]any{"success": true})
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout <session>",
		Short: "Revoke the calling session",
		Args:  exactArgs(1, "logout <session>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			if err := e.admin.LogoutSelf(cmd.Context(), args[0]); err != nil {
				return err
			}
			return printJSON(map[string]any{"success": true})
		},
	}
}

func newLogoutAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout-all <session>",
		Short: "Revoke every token in the system",
		Args:  exactArgs(1, "logout-all <session>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			if err := e.admin.LogoutAll(cmd.Context(), args[0]); err != nil {
				return err
			}
			return printJSON(map[string]any{"success": true})
		},
	}
}

func newClearAttemptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-attempts <session>",
		Short: "Empty the failed-login log",
		Args:  exactArgs(1, "clear-attempts <session>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			if err := e.admin.ClearAllAttempts(cmd.Context(), args[0]); err != nil {
				return err
			}
			return printJSON(map[string]any{"success": true})
		},
	}
}

func newUserActionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "user-action <session> <action> <user_id>",
		Short: "Apply a named mutation to one user",
		Long: "Actions: freeze, unfreeze, clear_attempts, promote_app_admin, demote_app_admin,\n" +
			"promote_dev_admin, demote_dev_admin, grant_root_auth, revoke_root_auth.",
		Args: exactArgs(3, "user-action <session> <action> <user_id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			if err := e.admin.UserAction(cmd.Context(), args[0], args[1], args[2]); err != nil {
				return err
			}
			return printJSON(map[string]any{"success": true, "action": args[1]})
		},
	}
}

// Settings that set-config may change, with their value kind.
var tunableSettings = map[string]string{
	"ENABLE_2FA":              "bool",
	"REQUIRE_2FA":             "bool",
	"DEFAULT_USER_2FA":        "bool",
	"REPLACE_CORRUPTED_FILES": "bool",
	"MAX_LOGIN_FAILURES":      "int",
	"LOCKOUT_LOGIN_WINDOW":    "int",
	"PW_CHANGE_AUTH_WINDOW":   "int",
	"TOKEN_AGE":               "int",
	"APP_NAME":                "string",
}

func newSetConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-config <session> <key> <value>",
		Short: "Persist a server setting to the .env file",
		Args:  exactArgs(3, "set-config <session> <key> <value>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			if _, _, err := e.admin.AuthenticateSession(cmd.Context(), args[0]); err != nil {
				return err
			}

			key, value := args[1], args[2]
			kind, ok := tunableSettings[key]
			if !ok {
				return usageErrorf("unknown setting %q", key)
			}
			switch kind {
			case "bool":
				_, err = config.SetEnvBool(e.cfg.EnvFile, key, value)
			case "int":
				_, err = config.SetEnvInt(e.cfg.EnvFile, key, value)
			default:
				err = config.SetEnvString(e.cfg.EnvFile, key, value)
			}
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"success": true, "key": key, "value": value})
		},
	}
}

func newCreateUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-user <session> <username> <password> [key value]...",
		Short: "Create an account from the template with field overrides",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 3 {
				return usageErrorf("usage: create-user <session> <username> <password> [key value]...")
			}
			if (len(args)-3)%2 != 0 {
				return usageErrorf("field overrides must come in key value pairs")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}

			overrides := make(map[string]string, (len(args)-3)/2)
			for i := 3; i+1 < len(args); i += 2 {
				overrides[args[i]] = args[i+1]
			}

			user, err := e.admin.CreateUser(cmd.Context(), args[0], args[1], args[2], overrides)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"success": true, "id": user.ID, "username": user.Username})
		},
	}
}
