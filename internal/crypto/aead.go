package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const gcmNonceSize = 12

// ErrDecryptionFailed is returned when AES-GCM authentication fails, which
// covers both tampering and a wrong key.
var ErrDecryptionFailed = errors.New("decryption failed")

// Encrypt seals plaintext with AES-256-GCM under a fresh random nonce and
// returns base64url(nonce ‖ ciphertext), the wire form used for the vault
// body, the auth_key cookie and the encrypted on-disk containers.
func Encrypt(key, plaintext []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce, err := RandomBytes(gcmNonceSize)
	if err != nil {
		return "", err
	}
	out := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.URLEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Missing base64 padding is tolerated.
func Decrypt(key []byte, encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	raw, err := DecodeBase64Padded(encoded)
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, err)
	}
	return DecryptRaw(key, raw)
}

// DecryptRaw opens a nonce ‖ ciphertext blob, the layout of the tokens file.
func DecryptRaw(key, raw []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(raw) < gcmNonceSize {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := gcm.Open(nil, raw[:gcmNonceSize], raw[gcmNonceSize:], nil)
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// EncryptRaw seals plaintext as nonce ‖ ciphertext without encoding.
func EncryptRaw(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce, err := RandomBytes(gcmNonceSize)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != derivedKeyLen {
		return nil, fmt.Errorf("aes-gcm requires a 32-byte key, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// DecodeBase64Padded decodes base64url input whether or not padding was kept.
func DecodeBase64Padded(s string) ([]byte, error) {
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	return base64.URLEncoding.DecodeString(s)
}
