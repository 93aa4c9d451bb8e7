package account

import "errors"

// Sentinel errors for handlers and the portal session manager to classify.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotConfirmed  = errors.New("email address has not been confirmed")
	ErrInvalidEmail       = errors.New("email address is not valid")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrUnknownProvider    = errors.New("unknown oauth provider")
	ErrSessionNotFound    = errors.New("session not found or expired")
)
