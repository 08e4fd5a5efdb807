package config

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
)

// minKeyLength is the minimum length of a raw key value before normalization.
const minKeyLength = 32

// ErrKeyMissing is returned when a required cryptographic key is not set.
var ErrKeyMissing = errors.New("required key not set")

// ErrKeyTooShort is returned when a required key is shorter than 32 characters.
var ErrKeyTooShort = errors.New("key must be at least 32 characters")

// Keys holds the four process-wide secrets, already normalized to 32 bytes.
//
// System and Token are AES-256 keys. Integrity and Encapsulation are HMAC
// keys and keep the base64url text form as key material, matching the
// on-disk signatures produced by earlier deployments.
type Keys struct {
	System        []byte
	Integrity     []byte
	Encapsulation []byte
	Token         []byte
}

// LoadKeys reads SYSTEM_KEY, INTEGRITY_KEY, ENCAPSILATION_KEY and TOKEN_KEY
// from the environment. Each must be at least 32 characters; the value is
// normalized by SHA-256 and base64url-encoded so that key material is always
// exactly 32 bytes regardless of the operator-supplied length.
func LoadKeys() (Keys, error) {
	system, err := requiredKey("SYSTEM_KEY")
	if err != nil {
		return Keys{}, err
	}
	integrity, err := requiredKey("INTEGRITY_KEY")
	if err != nil {
		return Keys{}, err
	}
	encapsulation, err := requiredKey("ENCAPSILATION_KEY")
	if err != nil {
		return Keys{}, err
	}
	token, err := requiredKey("TOKEN_KEY")
	if err != nil {
		return Keys{}, err
	}

	return Keys{
		System:        decodeAESKey(system),
		Integrity:     []byte(integrity),
		Encapsulation: []byte(encapsulation),
		Token:         decodeAESKey(token),
	}, nil
}

// requiredKey fetches and normalizes one key, returning the base64url text.
func requiredKey(name string) (string, error) {
	value := os.Getenv(name)
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrKeyMissing, name)
	}
	if len(value) < minKeyLength {
		return "", fmt.Errorf("%w: %s", ErrKeyTooShort, name)
	}
	sum := sha256.Sum256([]byte(value))
	return base64.URLEncoding.EncodeToString(sum[:]), nil
}

// decodeAESKey converts a normalized key back to its 32 raw bytes.
func decodeAESKey(normalized string) []byte {
	raw, err := base64.URLEncoding.DecodeString(normalized)
	if err != nil {
		// Unreachable: the input is always our own base64url output.
		panic(err)
	}
	return raw
}
