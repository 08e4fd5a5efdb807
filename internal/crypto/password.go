// Package crypto implements the cryptographic primitives of the server:
// PBKDF2 password hashing, HKDF key derivation for the vault key-wrapping
// scheme, AES-256-GCM authenticated encryption, integrity and token HMACs,
// and RFC 6238 time-based one-time passwords.
package crypto

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"runtime"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/sync/semaphore"
)

const (
	// PBKDF2Iterations is the fixed work factor for every password-derived
	// key in the system. Changing it invalidates all stored verifiers.
	PBKDF2Iterations = 600_000

	passwordSaltLen = 16
	derivedKeyLen   = 32
)

// kdfGate bounds the number of PBKDF2 computations running at once so a
// burst of logins cannot saturate every core and starve the request acceptor.
var kdfGate = semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0)))

// HashPassword derives a salted PBKDF2-HMAC-SHA256 verifier. The encoding is
// base64(salt ‖ hash) with a fresh 16-byte salt.
func HashPassword(ctx context.Context, password string) (string, error) {
	salt, err := RandomBytes(passwordSaltLen)
	if err != nil {
		return "", err
	}
	hash, err := deriveGated(ctx, []byte(password), salt)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(append(salt, hash...)), nil
}

// VerifyPassword checks a password against a stored verifier in constant
// time. A malformed verifier verifies as false.
func VerifyPassword(ctx context.Context, password, stored string) bool {
	decoded, err := base64.StdEncoding.DecodeString(stored)
	if err != nil || len(decoded) != passwordSaltLen+derivedKeyLen {
		return false
	}
	salt := decoded[:passwordSaltLen]
	want := decoded[passwordSaltLen:]

	got, err := deriveGated(ctx, []byte(password), salt)
	if err != nil {
		return false
	}
	return hmac.Equal(got, want)
}

// DeriveLoginSecret computes the 32-byte login secret held by the in-memory
// session store: PBKDF2-HMAC-SHA256 of the password under the user's salt.
func DeriveLoginSecret(ctx context.Context, password, saltHex string) ([]byte, error) {
	salt, err := decodeHex(saltHex)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	return deriveGated(ctx, []byte(password), salt)
}

func deriveGated(ctx context.Context, secret, salt []byte) ([]byte, error) {
	if err := kdfGate.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer kdfGate.Release(1)
	return pbkdf2.Key(secret, salt, PBKDF2Iterations, derivedKeyLen, sha256.New), nil
}
