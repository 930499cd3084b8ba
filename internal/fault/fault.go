// Package fault defines the error taxonomy shared by every external call
// in the pipeline, plus the retry and cleanup helpers built on it.
//
// Every error crossing a component boundary is classified into a Kind.
// The kind decides whether the operation is retried with backoff or fails
// immediately.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes a failure for retry decisions and user-facing reporting.
type Kind string

const (
	// KindNetwork covers timeouts, connectivity loss and model overload.
	// Always retryable.
	KindNetwork Kind = "network"

	// KindStorage covers blob store faults. Conflicts ("already exists")
	// are expected races and treated as success by callers, so they are
	// not retryable.
	KindStorage Kind = "storage"

	// KindDatabase covers relational store faults. Constraint violations
	// are terminal.
	KindDatabase Kind = "database"

	// KindValidation covers bad input, schema mismatches and auth
	// failures. Never retried.
	KindValidation Kind = "validation"

	// KindProcessing covers internal pipeline faults that match no other
	// category.
	KindProcessing Kind = "processing"
)

// Error is a classified error. Context carries technical detail for logs;
// Message is safe to surface to callers.
type Error struct {
	Kind      Kind
	Retryable bool
	Message   string
	Context   map[string]any

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// With attaches a context key/value and returns e for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates a classified error without a cause.
func New(kind Kind, retryable bool, message string) *Error {
	return &Error{Kind: kind, Retryable: retryable, Message: message}
}

// Wrap creates a classified error wrapping cause.
func Wrap(kind Kind, retryable bool, message string, cause error) *Error {
	return &Error{Kind: kind, Retryable: retryable, Message: message, cause: cause}
}

// Validation creates a non-retryable validation error.
func Validation(message string) *Error {
	return New(KindValidation, false, message)
}

// Classify maps an arbitrary error onto the taxonomy. Errors that already
// carry a classification pass through unchanged. Unknown errors default to
// database/non-retryable: guessing "retryable" for an unknown fault risks
// hammering a store that is rejecting us for a reason.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}

	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "timeout", "timed out", "etimedout", "econnrefused",
		"connection reset", "connection refused", "no such host", "broken pipe"):
		return Wrap(KindNetwork, true, "network failure", err)

	case containsAny(msg, "rate limit", "quota exceeded", "429", "overloaded",
		"unavailable", "502", "503", "504"):
		return Wrap(KindNetwork, true, "upstream overloaded", err)

	case containsAny(msg, "api key", "api-key", "unauthorized", "unauthenticated",
		"401", "403", "permission denied"):
		return Wrap(KindValidation, false, "authentication failure", err)

	// Checked before the duplicate/already-exists case: postgres phrases
	// unique violations as "duplicate key value violates unique
	// constraint", which must classify as database, not storage.
	case containsAny(msg, "unique constraint", "violates unique",
		"check constraint", "violates check", "foreign key"):
		return Wrap(KindDatabase, false, "constraint violation", err)

	case containsAny(msg, "already exists", "duplicate"):
		return Wrap(KindStorage, false, "storage conflict", err)

	default:
		return Wrap(KindDatabase, false, "unclassified failure", err)
	}
}

// Retryable reports whether err should be retried after classification.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Retryable
}

// IsConflict reports whether err is a storage conflict ("already exists").
// Callers treat this as success: an identical content-addressed path
// implies identical content.
func IsConflict(err error) bool {
	fe := Classify(err)
	return fe != nil && fe.Kind == KindStorage && !fe.Retryable
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
