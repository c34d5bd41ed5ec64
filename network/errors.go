package network

import (
	"errors"
	"fmt"
)

// ErrorKind is the category of a classified failure.
type ErrorKind string

const (
	// KindNone marks a successful outcome.
	KindNone ErrorKind = ""
	// KindInterrupted means the call was cancelled by the interrupt token or its context.
	KindInterrupted ErrorKind = "interrupted"
	// KindArgument means the caller passed an invalid method or parameter combination.
	KindArgument ErrorKind = "argument_error"
	// KindAuthentication means the server refused access.
	KindAuthentication ErrorKind = "authentication_failure"
	// KindNoContent means the resource does not exist.
	KindNoContent ErrorKind = "no_content"
	// KindInternal means the request was malformed from the server's point of
	// view, or the client reached a state it should never reach.
	KindInternal ErrorKind = "internal_error"
	// KindServiceFailure means the server or service failed.
	KindServiceFailure ErrorKind = "service_failure"
	// KindNetworkFailure means local connectivity is broken or the address cannot be resolved.
	KindNetworkFailure ErrorKind = "network_failure"
	// KindRateLimitExceeded means the server kept rate limiting past the retry budget.
	KindRateLimitExceeded ErrorKind = "rate_limit_exceeded"
)

// Sentinels for errors.Is matching on kind alone.
var (
	ErrInterrupted       = &Error{kind: KindInterrupted}
	ErrArgument          = &Error{kind: KindArgument}
	ErrAuthentication    = &Error{kind: KindAuthentication}
	ErrNoContent         = &Error{kind: KindNoContent}
	ErrInternal          = &Error{kind: KindInternal}
	ErrServiceFailure    = &Error{kind: KindServiceFailure}
	ErrNetworkFailure    = &Error{kind: KindNetworkFailure}
	ErrRateLimitExceeded = &Error{kind: KindRateLimitExceeded}
)

// ErrTooManyRedirects is reported when the redirect limit of the default client is hit.
var ErrTooManyRedirects = errors.New("too many redirects")

// Error is a classified failure. Messages name the URL they concern.
type Error struct {
	kind       ErrorKind
	message    string
	statusCode int
	wrapped    error
}

// NewError creates a classified error of the given kind.
func NewError(kind ErrorKind, message string, wrapped error) *Error {
	return &Error{kind: kind, message: message, wrapped: wrapped}
}

func newStatusError(kind ErrorKind, statusCode int, format string, args ...any) *Error {
	return &Error{kind: kind, statusCode: statusCode, message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

// Kind returns the error category.
func (e *Error) Kind() ErrorKind {
	return e.kind
}

// StatusCode returns the HTTP status that produced the error, or 0 when the
// failure happened below HTTP.
func (e *Error) StatusCode() int {
	return e.statusCode
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// Is matches the kind sentinels (ErrNoContent and friends).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.message != "" {
		return false
	}
	return t.kind == e.kind
}

// KindOf returns the kind of a classified error, or KindNone if err is nil or unclassified.
func KindOf(err error) ErrorKind {
	var netErr *Error
	if errors.As(err, &netErr) {
		return netErr.kind
	}
	return KindNone
}

// IsKind reports whether err is a classified error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
