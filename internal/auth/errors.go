package auth

import "errors"

var (
	// ErrAuthDisabled is returned when no signing secret is configured.
	ErrAuthDisabled = errors.New("auth: disabled, no secret configured")

	// ErrInvalidToken is returned for any token that fails to parse or validate.
	ErrInvalidToken = errors.New("auth: invalid token")
)
