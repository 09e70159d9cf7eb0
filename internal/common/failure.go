package common

import (
	"errors"
	"fmt"
)

// FailKind classifies why a transfer attempt failed. The kind decides
// whether a retry makes sense and what the user is told.
type FailKind string

const (
	// FailNetwork covers transport errors, timeouts and 5xx responses.
	// Transient; retried with backoff.
	FailNetwork FailKind = "network"

	// FailServerRejected covers 4xx responses other than auth and size
	// limits. Not retried at the same payload; surfaced verbatim.
	FailServerRejected FailKind = "server-rejected"

	// FailPayloadTooLarge is a 413: the payload exceeds the endpoint's
	// limit. Not retried at the same size.
	FailPayloadTooLarge FailKind = "payload-too-large"

	// FailAuthExpired is a 401: the session token lapsed mid-transfer.
	// One refresh-and-retry is attempted before giving up.
	FailAuthExpired FailKind = "auth-expired"

	// FailCanceled marks a user-initiated cancellation. Terminal, not an
	// error in the taxonomy sense.
	FailCanceled FailKind = "canceled"
)

// Retryable reports whether an attempt failing with this kind may be
// retried without changing the payload.
func (k FailKind) Retryable() bool {
	return k == FailNetwork || k == FailAuthExpired
}

// UploadError carries the failure taxonomy alongside the underlying cause.
type UploadError struct {
	Kind FailKind
	Err  error
}

func (e *UploadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("upload failed: %s", e.Kind)
	}
	return fmt.Sprintf("upload failed (%s): %v", e.Kind, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// NewUploadError wraps err with a failure kind.
func NewUploadError(kind FailKind, err error) *UploadError {
	return &UploadError{Kind: kind, Err: err}
}

// KindOf extracts the failure kind from err, defaulting to FailNetwork for
// plain transport-level errors so that unknown failures stay retryable.
func KindOf(err error) FailKind {
	var ue *UploadError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return FailNetwork
}
