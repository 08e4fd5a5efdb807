package crypto

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/hex"
	"fmt"
)

// RandomBytes returns n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	return b, nil
}

// RandomHex returns n random bytes hex-encoded, e.g. the 16-byte user salt
// and the 32-byte CSRF token.
func RandomHex(n int) (string, error) {
	b, err := RandomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// RandomBase32 returns a 32-character base32 secret (160 bits), the seed
// format expected by authenticator apps.
func RandomBase32() (string, error) {
	b, err := RandomBytes(20)
	if err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b), nil
}
