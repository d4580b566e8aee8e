package core

import "fmt"

// ErrorKind classifies a request processing failure. The rest package maps
// kinds to HTTP status codes, so handlers and gateways never deal with status
// codes directly.
type ErrorKind int

// all error kinds
const (
	KindParse ErrorKind = iota
	KindUnsupportedMedia
	KindValidation
	KindNotFound
	KindWrite
	KindDependency
	KindAmbiguous
	KindConfiguration
	KindInternal
)

// Error is a classified error with an optional details payload for the
// response envelope.
type Error struct {
	Kind    ErrorKind
	Message string
	Details interface{}
}

func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Details)
	}
	return e.Message
}

// ParseError reports a malformed input encoding.
func ParseError(message string) *Error {
	return &Error{Kind: KindParse, Message: message}
}

// UnsupportedMediaError reports a wrong or missing content type.
func UnsupportedMediaError(message string) *Error {
	return &Error{Kind: KindUnsupportedMedia, Message: message}
}

// ValidationError reports missing or invalid fields. Details carries the full
// list of violations, not just the first one.
func ValidationError(message string, details interface{}) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

// NotFoundError reports an absent primary entity.
func NotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// WriteError reports a constraint violation or backend write failure. Details
// carries the store's own message so callers can tell their mistake from a
// backend fault.
func WriteError(message string, details interface{}) *Error {
	return &Error{Kind: KindWrite, Message: message, Details: details}
}

// DependencyError reports a failed call to a non-primary upstream, such as the
// agent service or a stored-content fetch.
func DependencyError(message string, details interface{}) *Error {
	return &Error{Kind: KindDependency, Message: message, Details: details}
}

// AmbiguousError reports that a lookup expecting at most one row matched several.
func AmbiguousError(message string) *Error {
	return &Error{Kind: KindAmbiguous, Message: message}
}

// ConfigurationError reports a missing or unusable service configuration.
func ConfigurationError(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// InternalError wraps any uncaught condition.
func InternalError(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Details: err.Error()}
}

// KindOf returns the kind of a classified error, or KindInternal for anything else.
func KindOf(err error) ErrorKind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindInternal
}
