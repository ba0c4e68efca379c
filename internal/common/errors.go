// Package common defines shared constants and sentinel errors used across
// client and server layers of tubeaccounts. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound           = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrRefreshTokenMismatch = errors.New("refresh token mismatch")

	// Service-level error kinds. Every error returned by a service wraps
	// exactly one of these.
	ErrValidation     = errors.New("validation error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrRateLimited    = errors.New("too many attempts")
	ErrorInternal     = errors.New("internal error")

	// Authentication details, always wrapped together with ErrorUnauthorized.
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrCredentialMismatch = errors.New("invalid credentials")
	ErrMissingToken       = errors.New("missing token")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)
