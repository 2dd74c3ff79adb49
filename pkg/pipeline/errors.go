// Package pipeline defines the error taxonomy shared by every stage of the
// episode pipeline. Workers classify failures into one of a small set of
// kinds and the top-level queue handler decides, from the kind alone, whether
// to retry in place, defer the episode back to an earlier stage, or mark it
// failed. Inner components raise these errors and never touch episode state.
package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	// KindValidation marks bad input (missing episode id, unknown config).
	// Never retried.
	KindValidation Kind = "validation"

	// KindTransient marks a local, short-lived failure (blob 5xx, dropped
	// DB connection). Retried in place with backoff.
	KindTransient Kind = "transient"

	// KindDeferrable marks a failure that should return the episode to an
	// earlier stage for queue-driven retry (TTS rate limit, timeout budget
	// exhausted, circuit breaker tripped).
	KindDeferrable Kind = "deferrable"

	// KindFatal marks an unrecoverable failure. The episode is marked
	// failed and nothing partial is published.
	KindFatal Kind = "fatal"

	// KindWarning marks an advisory condition attached to the processing
	// log without affecting episode outcome.
	KindWarning Kind = "warning"
)

// Error is the structured failure value passed up from pipeline components.
type Error struct {
	Kind    Kind
	Message string

	// Details carries structured context for the processing log.
	Details map[string]any

	// RetryAfter is a remote-suggested delay before the next attempt.
	// Only meaningful for KindDeferrable.
	RetryAfter time.Duration

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pipeline: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("pipeline: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retriable reports whether the failure should be retried in place.
func (e *Error) Retriable() bool { return e.Kind == KindTransient }

// Deferrable reports whether the failure should re-queue the episode.
func (e *Error) Deferrable() bool { return e.Kind == KindDeferrable }

// Validation creates a validation error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Transient wraps err as a transient-local failure.
func Transient(err error, format string, args ...any) *Error {
	return &Error{Kind: KindTransient, Message: fmt.Sprintf(format, args...), Err: err}
}

// Defer creates a deferrable failure with an optional retry-after hint.
func Defer(retryAfter time.Duration, format string, args ...any) *Error {
	return &Error{Kind: KindDeferrable, Message: fmt.Sprintf(format, args...), RetryAfter: retryAfter}
}

// DeferWrap wraps err as a deferrable failure.
func DeferWrap(err error, retryAfter time.Duration, format string, args ...any) *Error {
	return &Error{Kind: KindDeferrable, Message: fmt.Sprintf(format, args...), RetryAfter: retryAfter, Err: err}
}

// Fatal wraps err as a fatal failure.
func Fatal(err error, format string, args ...any) *Error {
	return &Error{Kind: KindFatal, Message: fmt.Sprintf(format, args...), Err: err}
}

// Warning creates an advisory error that must not affect episode outcome.
func Warning(format string, args ...any) *Error {
	return &Error{Kind: KindWarning, Message: fmt.Sprintf(format, args...)}
}

// As extracts a pipeline *Error from err. Unknown errors are wrapped as
// fatal so the worker's failure path always has a kind to act on.
func As(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return &Error{Kind: KindFatal, Message: "unclassified error", Err: err}
}

// IsDeferrable reports whether err carries a deferrable pipeline error.
func IsDeferrable(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Deferrable()
}

// IsRetriable reports whether err carries a transient pipeline error.
func IsRetriable(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Retriable()
}

// RetryAfter returns the remote-suggested retry delay carried by err,
// or zero when none was suggested.
func RetryAfter(err error) time.Duration {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}
