package auth

import "errors"

// Authentication errors.
var (
	// ErrTokenInvalid is returned when a JWT fails validation.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrSecretMismatch is returned when the presented API secret is wrong.
	ErrSecretMismatch = errors.New("API secret mismatch")

	// ErrSecretRequired is returned when no signing secret is configured.
	ErrSecretRequired = errors.New("signing secret is required")
)
