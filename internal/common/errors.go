// Package common defines shared constants and sentinel errors used across
// client and server layers of Eras. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Upload-session errors.
	ErrOffsetMismatch  = errors.New("upload offset mismatch")
	ErrSessionExpired  = errors.New("upload session expired")
	ErrSessionComplete = errors.New("upload session already complete")

	// Media errors.
	ErrPayloadTooLarge    = errors.New("payload too large")
	ErrCopySourceTooLarge = errors.New("copy source too large")
	ErrMediaPending       = errors.New("media record still pending")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)
