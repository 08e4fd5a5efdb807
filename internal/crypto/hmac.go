package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// SignHex computes the hex HMAC-SHA256 of data, used for on-disk container
// signatures under the integrity key.
func SignHex(key, data []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// TokenDigest hashes a plaintext bearer token under the encapsulation key.
// Only this digest is ever persisted.
func TokenDigest(key []byte, token string) string {
	return SignHex(key, []byte(token))
}

// EqualConstantTime compares two strings without leaking the mismatch
// position. Used for container signatures and the CSRF header.
func EqualConstantTime(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
