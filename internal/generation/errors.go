package generation

import (
	"errors"
	"fmt"
)

// TransientError covers network failures, timeouts, and service rate limits.
// The orchestrator may retry the same batch.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient generation failure (%s): %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// MalformedResponseError indicates the service responded but the body could
// not be parsed into record candidates. Retryable once with a simplified
// prompt variant.
type MalformedResponseError struct {
	Snippet string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed generation response: %v (body: %.80q)", e.Err, e.Snippet)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// FatalAuthError indicates the credential is invalid or rejected. Not
// retryable; aborts the whole run.
type FatalAuthError struct {
	Status  int
	Message string
}

func (e *FatalAuthError) Error() string {
	return fmt.Sprintf("generation credential rejected (status %d): %s", e.Status, e.Message)
}

// IsTransient reports whether err classifies as retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsMalformed reports whether err classifies as a parse failure.
func IsMalformed(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}

// IsFatalAuth reports whether err classifies as a credential failure.
func IsFatalAuth(err error) bool {
	var fe *FatalAuthError
	return errors.As(err, &fe)
}
