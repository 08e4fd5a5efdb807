package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/securevault/secureserver/internal/crypto"
	"github.com/securevault/secureserver/internal/logging"
	"github.com/securevault/secureserver/internal/store"
	"github.com/securevault/secureserver/internal/token"
)

// Result is the outcome of one login attempt. Payload carries the
// provisioning URI for CodeTOTPSetup and the lockout message for CodeLocked.
// Credentials are set only on CodeSuccess and CodeRootSuccess.
type Result struct {
	Code        Code
	Payload     string
	Credentials token.Credentials
	User        *store.User
}

// dummyVerifier equalizes password-check timing for unknown usernames: the
// same PBKDF2 work runs whether or not the user exists.
var dummyVerifier = sync.OnceValue(func() string {
	hash, err := crypto.HashPassword(context.Background(), uuid.NewString())
	if err != nil {
		panic(err)
	}
	return hash
})

// Login runs the login state machine for one attempt.
//
// Order of checks: bootstrap, lockout, credentials, freeze, root-on-public,
// two-factor, success. Lockout beats freeze beats the two-factor gate.
func (s *Service) Login(ctx context.Context, surface Surface, username, password, totpCode string) (Result, error) {
	// Length caps mirror signup validation; no account can hold longer
	// credentials, so the check runs before any PBKDF2 work.
	if len(username) > usernameMaxLen || len(password) > passwordMaxLen {
		s.log.Info("login rejected", logging.Action("oversized_credentials"))
		return Result{Code: CodeBadCredentials}, nil
	}

	users, err := s.store.LoadUsers()
	if err != nil {
		return Result{}, err
	}

	if len(users) == 0 {
		return s.bootstrap(ctx, username, password)
	}

	if res, locked, err := s.checkLockout(username); err != nil {
		return Result{}, err
	} else if locked {
		return res, nil
	}

	user := store.FindUserByUsername(users, username)

	verifier := dummyVerifier()
	if user != nil {
		verifier = user.Password
	}
	passwordOK := crypto.VerifyPassword(ctx, password, verifier)

	if user == nil || !passwordOK || (surface == SurfaceAdmin && !user.DevAdmin) {
		if err := s.recordFailure(username); err != nil {
			return Result{}, err
		}
		s.log.Info("login rejected", logging.Username(username), logging.Action("bad_credentials"))
		return Result{Code: CodeBadCredentials}, nil
	}

	if user.Freeze {
		return Result{Code: CodeFrozen, User: user}, nil
	}

	if user.Root && surface == SurfacePublic {
		// Root never authenticates on the public surface; the response is
		// indistinguishable from a wrong password.
		s.log.Warn("root login attempt on public surface", logging.Username(username))
		return Result{Code: CodeBadCredentials}, nil
	}

	if s.twoFactorRequired(user) {
		res, done, err := s.twoFactorGate(surface, user, totpCode)
		if err != nil {
			return Result{}, err
		}
		if !done {
			return res, nil
		}
	}

	return s.succeed(ctx, surface, user, password)
}

// bootstrap creates the initial developer admin when the user set is empty.
// This is the only path that creates a root account.
func (s *Service) bootstrap(ctx context.Context, username, password string) (Result, error) {
	hash, err := crypto.HashPassword(ctx, password)
	if err != nil {
		return Result{}, err
	}
	salt, err := crypto.RandomHex(16)
	if err != nil {
		return Result{}, err
	}
	secret, err := crypto.RandomBase32()
	if err != nil {
		return Result{}, err
	}

	admin := &store.User{
		ID:           uuid.NewString(),
		Username:     username,
		Password:     hash,
		Salt:         salt,
		TwoFASecret:  secret,
		TwoFAEnabled: true,
		Admin:        true,
		DevAdmin:     true,
		RootAuth:     true,
		Root:         true,
	}

	err = s.store.UpdateUsers(func(users []*store.User) ([]*store.User, error) {
		if len(users) != 0 {
			return nil, nil
		}
		return append(users, admin), nil
	})
	if err != nil {
		return Result{}, err
	}

	s.log.Warn("bootstrapped initial developer admin", logging.Username(username), logging.UserID(admin.ID))
	return Result{
		Code:    CodeTOTPSetup,
		Payload: crypto.ProvisioningURI(AdminIssuer, username, secret),
		User:    admin,
	}, nil
}

// checkLockout prunes the user's failure list to the lockout window and
// reports whether the account is currently locked.
func (s *Service) checkLockout(username string) (Result, bool, error) {
	now := s.now().Unix()
	windowStart := now - int64(s.cfg.LockoutLoginWindow().Seconds())

	var recent []int64
	err := s.store.UpdateAttempts(func(attempts store.FailedAttempts) (bool, error) {
		old := attempts[username]
		recent = recent[:0]
		for _, ts := range old {
			if ts >= windowStart {
				recent = append(recent, ts)
			}
		}
		if len(recent) == len(old) {
			return false, nil
		}
		if len(recent) == 0 {
			delete(attempts, username)
		} else {
			attempts[username] = append([]int64(nil), recent...)
		}
		return true, nil
	})
	if err != nil {
		return Result{}, false, err
	}

	if len(recent) < s.cfg.MaxLoginFailures {
		return Result{}, false, nil
	}

	oldest := recent[0]
	for _, ts := range recent {
		if ts < oldest {
			oldest = ts
		}
	}
	minutes := (oldest + int64(s.cfg.LockoutLoginWindow().Seconds()) - now) / 60
	if minutes < 0 {
		minutes = 0
	}
	s.log.Info("login locked out", logging.Username(username))
	return Result{
		Code:    CodeLocked,
		Payload: fmt.Sprintf("Try again in %d minutes", minutes),
	}, true, nil
}

func (s *Service) recordFailure(username string) error {
	now := s.now().Unix()
	return s.store.UpdateAttempts(func(attempts store.FailedAttempts) (bool, error) {
		attempts[username] = append(attempts[username], now)
		return true, nil
	})
}

func (s *Service) twoFactorRequired(user *store.User) bool {
	return s.cfg.Enable2FA && (user.TwoFAEnabled || s.cfg.Require2FA)
}

// twoFactorGate runs the setup or verification phase. done=true means the
// caller may proceed to success.
func (s *Service) twoFactorGate(surface Surface, user *store.User, code string) (Result, bool, error) {
	if user.TwoFASecret == "" {
		secret, err := crypto.RandomBase32()
		if err != nil {
			return Result{}, false, err
		}
		if err := s.updateUser(user.ID, func(u *store.User) {
			u.TwoFASecret = secret
			u.TwoFASetupComplete = false
		}); err != nil {
			return Result{}, false, err
		}
		user.TwoFASecret = secret
		user.TwoFASetupComplete = false
	}

	issuer := s.cfg.AppName
	if surface == SurfaceAdmin {
		issuer = AdminIssuer
	}

	if !user.TwoFASetupComplete {
		if code == "" {
			return Result{
				Code:    CodeTOTPSetup,
				Payload: crypto.ProvisioningURI(issuer, user.Username, user.TwoFASecret),
				User:    user,
			}, false, nil
		}
		if !crypto.ValidateTOTP(user.TwoFASecret, code, s.now()) {
			return Result{Code: CodeTOTPInvalid}, false, nil
		}
		if err := s.updateUser(user.ID, func(u *store.User) {
			u.TwoFASetupComplete = true
		}); err != nil {
			return Result{}, false, err
		}
		user.TwoFASetupComplete = true
		return Result{}, true, nil
	}

	if code == "" {
		return Result{Code: CodeTOTPRequired}, false, nil
	}
	if !crypto.ValidateTOTP(user.TwoFASecret, code, s.now()) {
		return Result{Code: CodeTOTPInvalid}, false, nil
	}
	return Result{}, true, nil
}

func (s *Service) succeed(ctx context.Context, surface Surface, user *store.User, password string) (Result, error) {
	err := s.store.UpdateAttempts(func(attempts store.FailedAttempts) (bool, error) {
		if _, ok := attempts[user.Username]; !ok {
			return false, nil
		}
		delete(attempts, user.Username)
		return true, nil
	})
	if err != nil {
		return Result{}, err
	}

	ttl := s.cfg.TokenAge()
	if surface == SurfaceAdmin {
		ttl = adminTokenTTL
	}

	creds, err := s.tokens.Issue(ctx, user.ID, password, ttl)
	if err != nil {
		return Result{}, err
	}

	code := CodeSuccess
	if user.RootAuth {
		code = CodeRootSuccess
	}
	s.log.Info("login succeeded",
		logging.Username(user.Username),
		logging.UserID(user.ID),
		logging.Action(code.String()),
	)
	return Result{Code: code, Credentials: creds, User: user}, nil
}
