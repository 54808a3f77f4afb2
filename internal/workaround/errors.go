package workaround

import (
	"errors"
	"fmt"
)

// Severity tells callers whether retrying can help.
type Severity int

const (
	SeverityRecoverable Severity = iota + 1
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityRecoverable:
		return "recoverable"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Category groups error codes by subsystem.
type Category string

const CategoryMedia Category = "MEDIA"

// Code is a machine-readable error code.
type Code string

const (
	CodeContentTransformationFailed Code = "CONTENT_TRANSFORMATION_FAILED"
	CodeInternal                    Code = "INTERNAL"
)

// Error is returned when an init segment cannot be rewritten.
type Error struct {
	Severity Severity
	Category Category
	Code     Code
	// URI identifies the content that failed, when known.
	URI     string
	Message string
	cause   error
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.URI != "" {
		msg += fmt.Sprintf(" (uri %s)", e.URI)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors for use with errors.Is.
var (
	ErrContentTransformationFailed = &Error{
		Severity: SeverityCritical,
		Category: CategoryMedia,
		Code:     CodeContentTransformationFailed,
		Message:  "content transformation failed",
	}
	ErrInternal = &Error{
		Severity: SeverityCritical,
		Category: CategoryMedia,
		Code:     CodeInternal,
		Message:  "internal consistency fault",
	}
)

func transformationFailed(uri, msg string, cause error) *Error {
	return &Error{
		Severity: SeverityCritical,
		Category: CategoryMedia,
		Code:     CodeContentTransformationFailed,
		URI:      uri,
		Message:  msg,
		cause:    cause,
	}
}

func internalFault(msg string) *Error {
	return &Error{
		Severity: SeverityCritical,
		Category: CategoryMedia,
		Code:     CodeInternal,
		Message:  msg,
	}
}
