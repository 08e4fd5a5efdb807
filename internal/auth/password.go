package auth

import (
	"context"
	"time"

	"github.com/securevault/secureserver/internal/crypto"
	"github.com/securevault/secureserver/internal/logging"
	"github.com/securevault/secureserver/internal/notify"
	"github.com/securevault/secureserver/internal/store"
	"github.com/securevault/secureserver/internal/token"
	"github.com/securevault/secureserver/internal/vault"
)

// ChangePassword runs the password-change protocol: fresh authentication,
// old-password re-verification, vault master key rewrap, hash replacement,
// and revocation of every outstanding token. The rewrap means the vault
// ciphertext survives the change untouched.
func (s *Service) ChangePassword(ctx context.Context, grant *token.Grant, oldPassword, newPassword string) error {
	user := grant.User

	authAge := s.now().Unix() - grant.Token.AuthTime
	if authAge > int64(s.cfg.PWChangeAuthWindow().Seconds()) {
		return ErrStaleAuth
	}

	if !crypto.VerifyPassword(ctx, oldPassword, user.Password) {
		return ErrBadCredentials
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	newHash, err := crypto.HashPassword(ctx, newPassword)
	if err != nil {
		return err
	}

	var rewrapped string
	if user.VaultMasterKeyWrapped != "" {
		oldKEK, err := vault.DeriveWrapKey(ctx, oldPassword, user.Salt)
		if err != nil {
			return err
		}
		master, err := vault.Unwrap(oldKEK, user.VaultMasterKeyWrapped)
		if err != nil {
			return err
		}
		newKEK, err := vault.DeriveWrapKey(ctx, newPassword, user.Salt)
		if err != nil {
			return err
		}
		rewrapped, err = vault.Wrap(newKEK, master)
		if err != nil {
			return err
		}
	}

	err = s.updateUser(user.ID, func(u *store.User) {
		u.Password = newHash
		if rewrapped != "" {
			u.VaultMasterKeyWrapped = rewrapped
		}
	})
	if err != nil {
		return err
	}

	if err := s.tokens.RemoveAll(user.ID); err != nil {
		return err
	}

	s.log.Info("password changed",
		logging.Username(user.Username),
		logging.UserID(user.ID),
	)

	if s.notifier != nil && s.cfg.CollectsContact() {
		s.notifier.Notify(ctx, user, notify.Message{
			Subject: "Password changed",
			Body: "The password for your " + s.cfg.AppName + " account was just changed at " +
				s.now().Format(time.RFC1123) + ". If this was not you, contact support immediately.",
		})
	}
	return nil
}
