package auth

import (
	"context"
	"errors"

	"github.com/securevault/secureserver/internal/crypto"
	"github.com/securevault/secureserver/internal/logging"
	"github.com/securevault/secureserver/internal/store"
	"github.com/securevault/secureserver/internal/token"
	"github.com/securevault/secureserver/internal/vault"
)

// ErrVaultKeyUnavailable means the stored master key could not be unwrapped
// with the current credentials.
var ErrVaultKeyUnavailable = errors.New("Failed to decrypt vault key.")

// wrapKEK derives the password-bound key-encryption key from the session's
// login secret.
func (s *Service) wrapKEK(ctx context.Context, grant *token.Grant) ([]byte, error) {
	return crypto.DeriveKEK(ctx, grant.LoginSecret, grant.User.Salt, crypto.VaultKeyInfo)
}

// SetVault encrypts and stores a vault body for the authenticated user,
// generating and wrapping a master key on first use.
func (s *Service) SetVault(ctx context.Context, grant *token.Grant, body string) error {
	if len(body) > vault.MaxBodyBytes {
		return vault.ErrBodyTooLarge
	}

	kek, err := s.wrapKEK(ctx, grant)
	if err != nil {
		return err
	}

	masterKey := ""
	wrapped := grant.User.VaultMasterKeyWrapped
	if wrapped == "" {
		masterKey, err = vault.NewMasterKey()
		if err != nil {
			return err
		}
		wrapped, err = vault.Wrap(kek, masterKey)
		if err != nil {
			return err
		}
		s.log.Info("generated vault master key",
			logging.Username(grant.User.Username),
			logging.UserID(grant.User.ID),
		)
	} else {
		masterKey, err = vault.Unwrap(kek, wrapped)
		if err != nil {
			s.log.Error("vault key unwrap failed",
				logging.UserID(grant.User.ID),
				logging.Error(err),
			)
			return ErrVaultKeyUnavailable
		}
	}

	sealed, err := vault.EncryptBody(masterKey, body)
	if err != nil {
		return err
	}

	return s.updateUser(grant.User.ID, func(u *store.User) {
		u.Vault = sealed
		u.VaultMasterKeyWrapped = wrapped
	})
}

// ReadVault decrypts the user's vault for display. Failures surface as
// in-band marker strings so profile reads never fail outright.
func (s *Service) ReadVault(ctx context.Context, grant *token.Grant) string {
	if grant.User.Vault == "" {
		return ""
	}
	if grant.User.VaultMasterKeyWrapped == "" {
		return "[No vault key configured]"
	}

	kek, err := s.wrapKEK(ctx, grant)
	if err != nil {
		return "[Error decrypting vault: " + err.Error() + "]"
	}
	masterKey, err := vault.Unwrap(kek, grant.User.VaultMasterKeyWrapped)
	if err != nil {
		return "[Error decrypting vault: " + err.Error() + "]"
	}
	body, err := vault.DecryptBody(masterKey, grant.User.Vault)
	if err != nil {
		return "[Error decrypting vault: " + err.Error() + "]"
	}
	return body
}

// UserSummary is the redacted projection of get_all_users.
type UserSummary struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Admin     bool   `json:"admin"`
	VaultSize int    `json:"vault_size"`
}

// AllUsers returns the redacted projection of every account except the
// template.
func (s *Service) AllUsers() ([]UserSummary, error) {
	users, err := s.store.LoadUsers()
	if err != nil {
		return nil, err
	}
	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		if u.Username == store.TemplateUsername {
			continue
		}
		name := u.FirstName
		if u.LastName != "" {
			if name != "" {
				name += " "
			}
			name += u.LastName
		}
		out = append(out, UserSummary{
			ID:        u.ID,
			Username:  u.Username,
			Name:      name,
			Admin:     u.Admin,
			VaultSize: len(u.Vault),
		})
	}
	return out, nil
}

// Logout revokes the session behind a grant.
func (s *Service) Logout(grant *token.Grant) error {
	if err := s.tokens.RemoveByDigest(grant.Token.ID); err != nil {
		return err
	}
	s.log.Info("logged out",
		logging.Username(grant.User.Username),
		logging.Token(grant.Token.SafeLog),
	)
	return nil
}
