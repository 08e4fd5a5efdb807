package crypto

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// RFC 6238 parameters shared with every authenticator app.
const (
	totpDigits = 6
	totpPeriod = 30 * time.Second
	// totpSkew accepts one period on either side of now to absorb clock
	// drift between the server and the authenticator.
	totpSkew = 1
)

// TOTPCode computes the 6-digit SHA-1 code for a base32 secret at time t.
func TOTPCode(secret string, t time.Time) (string, error) {
	key, err := decodeBase32(secret)
	if err != nil {
		return "", fmt.Errorf("decode totp secret: %w", err)
	}

	counter := uint64(t.Unix()) / uint64(totpPeriod.Seconds())
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	code := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%06d", code%1_000_000), nil
}

// ValidateTOTP reports whether code matches the secret within the accepted
// skew window. Comparison is constant time.
func ValidateTOTP(secret, code string, now time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != totpDigits {
		return false
	}
	for i := -totpSkew; i <= totpSkew; i++ {
		expected, err := TOTPCode(secret, now.Add(time.Duration(i)*totpPeriod))
		if err != nil {
			return false
		}
		if EqualConstantTime(expected, code) {
			return true
		}
	}
	return false
}

// ProvisioningURI builds the otpauth:// URI rendered as a QR code during 2FA
// setup: otpauth://totp/<issuer>:<account>?secret=...&issuer=...
func ProvisioningURI(issuer, account, secret string) string {
	label := url.PathEscape(issuer + ":" + account)
	return fmt.Sprintf(
		"otpauth://totp/%s?secret=%s&issuer=%s&algorithm=SHA1&digits=%d&period=%d",
		label, secret, url.QueryEscape(issuer), totpDigits, int(totpPeriod.Seconds()),
	)
}

func decodeBase32(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.TrimRight(secret, "="))
	return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalized)
}
