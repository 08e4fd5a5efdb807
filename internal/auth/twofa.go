package auth

import (
	"context"

	"github.com/securevault/secureserver/internal/crypto"
	"github.com/securevault/secureserver/internal/logging"
	"github.com/securevault/secureserver/internal/store"
)

// Enable2FA turns on two-factor authentication for a user, rotating the
// TOTP secret and leaving setup incomplete so the next login walks the setup
// phase. Enabling twice is a conflict.
func (s *Service) Enable2FA(ctx context.Context, userID string) error {
	if !s.cfg.Enable2FA {
		return Err2FAUnavailable
	}
	secret, err := crypto.RandomBase32()
	if err != nil {
		return err
	}

	return s.store.UpdateUsers(func(users []*store.User) ([]*store.User, error) {
		u := store.FindUserByID(users, userID)
		if u == nil {
			return nil, store.ErrUserNotFound
		}
		if u.TwoFAEnabled {
			return nil, Err2FAAlreadyEnabled
		}
		u.TwoFAEnabled = true
		u.TwoFASecret = secret
		u.TwoFASetupComplete = false
		s.log.Info("2fa enabled", logging.Username(u.Username), logging.UserID(u.ID))
		return users, nil
	})
}

// Disable2FA turns off two-factor authentication and discards the secret.
// Not permitted while the server requires 2FA for everyone.
func (s *Service) Disable2FA(ctx context.Context, userID string) error {
	if s.cfg.Require2FA {
		return Err2FAUnavailable
	}
	return s.store.UpdateUsers(func(users []*store.User) ([]*store.User, error) {
		u := store.FindUserByID(users, userID)
		if u == nil {
			return nil, store.ErrUserNotFound
		}
		if !u.TwoFAEnabled {
			return nil, Err2FANotEnabled
		}
		u.TwoFAEnabled = false
		u.TwoFASecret = ""
		u.TwoFASetupComplete = false
		s.log.Info("2fa disabled", logging.Username(u.Username), logging.UserID(u.ID))
		return users, nil
	})
}
