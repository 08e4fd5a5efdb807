package token

import "errors"

// Guard errors double as the client-facing messages of the auth surface, so
// their wording is part of the API contract.
var (
	ErrNoTokenCookie  = errors.New("Unauthorized - no token cookie.")
	ErrInvalidToken   = errors.New("Unauthorized token.")
	ErrNoAuthKey      = errors.New("Missing auth key.")
	ErrSessionExpired = errors.New("Session expired")
	ErrInvalidAuthKey = errors.New("Invalid authentication key")
	ErrMissingCSRF    = errors.New("Missing CSRF token.")
	ErrInvalidCSRF    = errors.New("Invalid CSRF token.")
	ErrUserNotFound   = errors.New("User not found")
)
