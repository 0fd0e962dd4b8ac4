package lakeerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the orchestrator's named
// failure modes.
type Kind string

const (
	// KindParseError: the submitted SQL could not be parsed.
	KindParseError Kind = "parse_error"
	// KindUnsupportedDialect: the SQL is valid but uses a construct the
	// planner does not lower (e.g. a top-level UNION).
	KindUnsupportedDialect Kind = "unsupported_dialect"
	// KindInvalidSource: a FROM-list reference is not a resolvable
	// object store location (malformed URI, unknown scheme).
	KindInvalidSource Kind = "invalid_source"
	// KindSourceNotFound: a well-formed source resolved to zero objects.
	KindSourceNotFound Kind = "source_not_found"
	// KindConfigError: a configuration value failed validation.
	KindConfigError Kind = "config_error"
	// KindDispatchError: a task could not be handed to a worker at all
	// (the dispatcher itself failed, not the task).
	KindDispatchError Kind = "dispatch_error"
	// KindTaskFailed: a worker accepted a task and reported failure.
	KindTaskFailed Kind = "task_failed"
	// KindStageTimeout: a stage did not complete within its deadline.
	KindStageTimeout Kind = "stage_timeout"
	// KindCacheInconsistency: the cache index and the blob store disagree
	// about whether a fingerprint's output exists.
	KindCacheInconsistency Kind = "cache_inconsistency"
	// KindDatasetExists: Materialize was called in ErrorIfExists mode
	// against a destination prefix that already has objects.
	KindDatasetExists Kind = "dataset_exists"
	// KindInternal is the fallback for errors with no more specific kind.
	KindInternal Kind = "internal"
)

// Error is the orchestrator's structured error type. It carries enough
// context to log and classify a failure without string-matching an
// error message.
type Error struct {
	Kind    Kind
	Message string
	Details string
	Cause   error
}

// New creates an Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap creates an Error that carries cause as its Unwrap target.
func Wrap(cause error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Wrapf creates a wrapped Error with a formatted message.
func Wrapf(cause error, kind Kind, format string, args ...any) *Error {
	return Wrap(cause, kind, fmt.Sprintf(format, args...))
}

// WithDetails sets Details and returns the same Error, for chaining.
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// WithDetailsf sets a formatted Details and returns the same Error.
func (e *Error) WithDetailsf(format string, args ...any) *Error {
	e.Details = fmt.Sprintf(format, args...)
	return e
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Predefined constructors, one per taxonomy entry in spec.

func NewParseError(message string) *Error {
	return New(KindParseError, message)
}

func NewUnsupportedDialect(construct string) *Error {
	return Newf(KindUnsupportedDialect, "unsupported construct: %s", construct)
}

func NewInvalidSource(source string) *Error {
	return Newf(KindInvalidSource, "invalid source: %s", source)
}

func NewSourceNotFound(prefix string) *Error {
	return Newf(KindSourceNotFound, "no objects matched source: %s", prefix)
}

func NewConfigError(field, reason string) *Error {
	return Newf(KindConfigError, "invalid value for %s: %s", field, reason)
}

func NewDispatchError(cause error, target string) *Error {
	return Wrapf(cause, KindDispatchError, "failed to dispatch to %s", target)
}

func NewTaskFailed(fingerprint, reason string) *Error {
	return Newf(KindTaskFailed, "task %s failed: %s", fingerprint, reason)
}

func NewStageTimeout(stageID string) *Error {
	return Newf(KindStageTimeout, "stage %s exceeded its deadline", stageID)
}

func NewCacheInconsistency(fingerprint string) *Error {
	return Newf(KindCacheInconsistency, "cache entry for %s has no backing object", fingerprint)
}

func NewDatasetExists(prefix string) *Error {
	return Newf(KindDatasetExists, "destination already has objects: %s", prefix)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// GetKind returns err's Kind, or KindInternal if err is not an *Error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
