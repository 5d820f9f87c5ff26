// Package errors implements the error-kind taxonomy used across the compile
// and serve paths. Each kind has a defined recovery behavior: some abort
// startup, some fail only the in-flight request, and some degrade to an
// empty result.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for recovery behavior.
type Kind int

const (
	// KindUnknown covers errors produced outside this package.
	KindUnknown Kind = iota

	// KindConfiguration indicates invalid or missing startup configuration,
	// including a failed realignment calibration. Fatal to startup.
	KindConfiguration

	// KindNumerical indicates a linear-algebra failure such as a singular
	// Gram matrix. Fatal to startup.
	KindNumerical

	// KindNotFound indicates a direct-id lookup miss or an absent index.
	// Recovered locally as an empty result.
	KindNotFound

	// KindBlobLoad indicates that one module's persisted tensors failed to
	// load. The entry is skipped and retrieval continues.
	KindBlobLoad

	// KindModelEvaluation indicates a failed forward evaluation. Fatal to
	// the in-flight request and never retried: a retry mid-loop would
	// corrupt the model's incremental cache.
	KindModelEvaluation

	// KindEmptyQuery indicates that no intent, code, or module id was
	// supplied. Recovered locally as a descriptive empty result.
	KindEmptyQuery
)

var kindNames = map[Kind]string{
	KindUnknown:         "unknown",
	KindConfiguration:   "configuration",
	KindNumerical:       "numerical",
	KindNotFound:        "not_found",
	KindBlobLoad:        "blob_load",
	KindModelEvaluation: "model_evaluation",
	KindEmptyQuery:      "empty_query",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Behavior describes how callers should handle a kind.
type Behavior struct {
	// FatalToStartup aborts the process before serving begins.
	FatalToStartup bool

	// FatalToRequest fails the in-flight request without retry.
	FatalToRequest bool

	// DegradesToEmpty means the caller returns an empty result instead of
	// propagating the failure.
	DegradesToEmpty bool
}

// BehaviorFor returns the handling behavior for a kind.
func BehaviorFor(k Kind) Behavior {
	switch k {
	case KindConfiguration, KindNumerical:
		return Behavior{FatalToStartup: true}
	case KindModelEvaluation:
		return Behavior{FatalToRequest: true}
	case KindNotFound, KindBlobLoad, KindEmptyQuery:
		return Behavior{DegradesToEmpty: true}
	default:
		return Behavior{FatalToRequest: true}
	}
}

// Error is a classified error. It supports errors.Is on kind sentinels and
// errors.As for unwrapping.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// Kind returns the classification of this error.
func (e *Error) Kind() Kind { return e.kind }

// New creates a classified error.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. A nil cause returns nil.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// Configuration creates a KindConfiguration error.
func Configuration(format string, args ...any) *Error {
	return New(KindConfiguration, format, args...)
}

// Numerical creates a KindNumerical error.
func Numerical(format string, args ...any) *Error {
	return New(KindNumerical, format, args...)
}

// NotFound creates a KindNotFound error.
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

// BlobLoad wraps a tensor-load failure.
func BlobLoad(err error, format string, args ...any) *Error {
	return Wrap(KindBlobLoad, err, format, args...)
}

// ModelEvaluation wraps a forward-evaluation failure.
func ModelEvaluation(err error, format string, args ...any) *Error {
	return Wrap(KindModelEvaluation, err, format, args...)
}

// EmptyQuery creates a KindEmptyQuery error.
func EmptyQuery(format string, args ...any) *Error {
	return New(KindEmptyQuery, format, args...)
}

// KindOf extracts the kind from an error chain. Unclassified errors report
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// IsKind reports whether any error in the chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
