// Package vault implements per-user encrypted secret storage. Every user
// owns a random 256-bit master key; the vault body is sealed under it with
// AES-GCM, and the master key itself is stored wrapped under a KEK derived
// from the user's password. Changing the password re-wraps the master key
// without touching the vault body.
package vault

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/securevault/secureserver/internal/crypto"
)

// MaxBodyBytes caps the size of a vault body accepted for storage.
const MaxBodyBytes = 100_000

var (
	// ErrNoMasterKey means the user record carries no wrapped master key.
	ErrNoMasterKey = errors.New("no vault master key configured")
	// ErrBodyTooLarge means the submitted vault body exceeds MaxBodyBytes.
	ErrBodyTooLarge = errors.New("vault body too large")
)

// NewMasterKey generates a fresh 256-bit master key, base64url-encoded so it
// can round-trip through the wrap encoding as text.
func NewMasterKey() (string, error) {
	raw, err := crypto.RandomBytes(32)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// DeriveWrapKey derives the password-bound KEK that wraps a master key. It
// deliberately uses a fixed info string rather than a session id so the same
// KEK is reproducible for as long as the password does not change.
func DeriveWrapKey(ctx context.Context, password, saltHex string) ([]byte, error) {
	secret, err := crypto.DeriveLoginSecret(ctx, password, saltHex)
	if err != nil {
		return nil, err
	}
	return crypto.DeriveKEK(ctx, secret, saltHex, crypto.VaultKeyInfo)
}

// Wrap seals a master key under a KEK for storage on the user record.
func Wrap(kek []byte, masterKey string) (string, error) {
	return crypto.Encrypt(kek, []byte(masterKey))
}

// Unwrap recovers the master key from its wrapped form. A wrong KEK fails
// AEAD authentication rather than yielding garbage.
func Unwrap(kek []byte, wrapped string) (string, error) {
	if wrapped == "" {
		return "", ErrNoMasterKey
	}
	plain, err := crypto.Decrypt(kek, wrapped)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// EncryptBody seals a vault body under the master key.
func EncryptBody(masterKey, body string) (string, error) {
	if len(body) > MaxBodyBytes {
		return "", ErrBodyTooLarge
	}
	key, err := decodeMasterKey(masterKey)
	if err != nil {
		return "", err
	}
	return crypto.Encrypt(key, []byte(body))
}

// DecryptBody opens a sealed vault body. An empty stored value is an empty
// vault, not an error.
func DecryptBody(masterKey, sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	key, err := decodeMasterKey(masterKey)
	if err != nil {
		return "", err
	}
	plain, err := crypto.Decrypt(key, sealed)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func decodeMasterKey(masterKey string) ([]byte, error) {
	if masterKey == "" {
		return nil, ErrNoMasterKey
	}
	key, err := crypto.DecodeBase64Padded(masterKey)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
