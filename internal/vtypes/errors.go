package vtypes

import (
	"fmt"
	"time"
)

// ErrorKind is the failure taxonomy for the voice pipeline.
type ErrorKind string

const (
	// KindNetwork covers connection resets, DNS failures and other
	// transport-level problems.
	KindNetwork ErrorKind = "network"
	// KindTimeout covers deadlines exceeded while talking to the provider.
	KindTimeout ErrorKind = "timeout"
	// KindAuthentication covers rejected credentials. Never retried.
	KindAuthentication ErrorKind = "authentication"
	// KindRateLimited covers 429-style provider responses.
	KindRateLimited ErrorKind = "rate_limited"
	// KindProvider covers 5xx and provider-reported job failures.
	KindProvider ErrorKind = "provider_error"
	// KindInvalidInput covers malformed or oversized input. Never retried.
	KindInvalidInput ErrorKind = "invalid_input"
	// KindCaptureUnsupported covers missing or denied microphone access.
	KindCaptureUnsupported ErrorKind = "capture_unsupported"
	// KindPlayback covers device or format failures during playback.
	KindPlayback ErrorKind = "playback_failure"
)

// Error is the single error type surfaced by the voice pipeline. Every
// failure class maps to exactly one kind with a recoverability flag and,
// for rate-limited failures, a suggested retry-after.
type Error struct {
	Kind        ErrorKind
	Message     string
	Recoverable bool
	RetryAfter  time.Duration
	Err         error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error { return e.Err }

// NewError builds a voice error with recoverability derived from the kind.
func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{
		Kind:        kind,
		Message:     msg,
		Recoverable: kindRecoverable(kind),
		Err:         err,
	}
}

func kindRecoverable(kind ErrorKind) bool {
	switch kind {
	case KindNetwork, KindTimeout, KindRateLimited, KindProvider, KindPlayback:
		return true
	}
	return false
}

// StatusError is a raw provider failure carrying the HTTP-level status and
// an optional provider-supplied retry-after hint. The classifier maps it
// into an Error.
type StatusError struct {
	Code       int
	Message    string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider returned status %d", e.Code)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.Code, e.Message)
}
