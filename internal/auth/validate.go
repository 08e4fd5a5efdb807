package auth

import (
	"regexp"
	"unicode"
)

const (
	usernameMinLen = 3
	usernameMaxLen = 32
	passwordMinLen = 12
	// passwordMaxLen matches the PBKDF2 input cap used at hashing time.
	passwordMaxLen = 72
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ValidateUsername enforces the signup username rules.
func ValidateUsername(username string) error {
	if len(username) < usernameMinLen || len(username) > usernameMaxLen {
		return ErrInvalidUsername
	}
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidatePassword enforces the signup password rules: length bounds plus at
// least one uppercase letter, lowercase letter, digit and punctuation or
// symbol character.
func ValidatePassword(password string) error {
	if len(password) < passwordMinLen || len(password) > passwordMaxLen {
		return ErrInvalidPassword
	}
	var upper, lower, digit, punct bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			punct = true
		}
	}
	if !upper || !lower || !digit || !punct {
		return ErrInvalidPassword
	}
	return nil
}
