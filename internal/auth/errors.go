package auth

import "errors"

// Client-facing errors of the account lifecycle. Wording is part of the API
// contract; in particular ErrBadCredentials must be identical for unknown
// users and wrong passwords.
var (
	ErrBadCredentials    = errors.New("Credentials do not match.")
	ErrUsernameTaken     = errors.New("Username already exists.")
	ErrInvalidUsername   = errors.New("Username must be 3-32 characters of letters, numbers, and underscores.")
	ErrInvalidPassword   = errors.New("Password must be 12-72 characters and include uppercase, lowercase, digit, and punctuation.")
	ErrStaleAuth         = errors.New("Recent authentication required.")
	Err2FAUnavailable    = errors.New("Two-factor authentication is not enabled on this server.")
	Err2FAAlreadyEnabled = errors.New("Two-factor authentication is already enabled.")
	Err2FANotEnabled     = errors.New("Two-factor authentication is not enabled.")
)
