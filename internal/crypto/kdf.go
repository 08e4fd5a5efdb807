package crypto

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// VaultKeyInfo is the HKDF info string binding a KEK to the vault
// key-wrapping role instead of to a session. A KEK derived with it depends
// only on the password and the user's salt, so it survives session turnover
// and lets change_password re-wrap the master key.
const VaultKeyInfo = "vault"

// DeriveKEK derives a 32-byte key-encryption key from a secret and the
// user's salt: PBKDF2-HMAC-SHA256 over the secret, then HKDF-SHA256 with the
// given info string. With info set to a session id the KEK is bound to that
// session (the auth_key cookie scheme); with VaultKeyInfo it is bound to the
// password alone.
func DeriveKEK(ctx context.Context, secret []byte, saltHex, info string) ([]byte, error) {
	salt, err := decodeHex(saltHex)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}

	baseKey, err := deriveGated(ctx, secret, salt)
	if err != nil {
		return nil, err
	}

	kek := make([]byte, derivedKeyLen)
	r := hkdf.New(sha256.New, baseKey, nil, []byte(info))
	if _, err := io.ReadFull(r, kek); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return kek, nil
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
