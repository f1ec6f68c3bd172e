// Package apperrors defines the gateway's error taxonomy. Every failure a
// handler can see is one of five kinds, each with a fixed HTTP status and
// wire error_type.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	// KindValidation: caller input is malformed or fails a business rule.
	KindValidation Kind = iota
	// KindNotFound: a referenced symbol or ticket does not exist.
	KindNotFound
	// KindConnection: the venue session is unusable; retryable by the caller.
	KindConnection
	// KindRejected: the venue accepted the session but refused the
	// instruction. Not retryable without changing the request.
	KindRejected
	// KindInternal: unexpected fault; message sanitized for the caller.
	KindInternal
)

// ErrorType returns the wire error_type for the kind.
func (k Kind) ErrorType() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindConnection:
		return "connection_error"
	case KindRejected:
		return "mt5_rejected"
	default:
		return "internal_error"
	}
}

// HTTPStatus returns the HTTP status for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindRejected:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the gateway's error value. Op names the operation that failed;
// Retcode and VenueCode carry the venue's trade return code and last-error
// code when the venue produced the failure.
type Error struct {
	Kind      Kind
	Op        string
	Message   string
	Retcode   int
	VenueCode int
	VenueMsg  string
	Details   map[string]interface{}
	Err       error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds a caller-input error.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Validationf builds a caller-input error with formatting.
func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// WithDetails attaches structured details echoed in the error envelope.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// NotFound builds an absent-resource error.
func NotFound(resource string, identifier interface{}) *Error {
	msg := resource + " not found"
	if identifier != nil {
		msg = fmt.Sprintf("%s not found: %v", resource, identifier)
	}
	return &Error{Kind: KindNotFound, Message: msg}
}

// Connection builds a venue-session error.
func Connection(op, message string) *Error {
	return &Error{Kind: KindConnection, Op: op, Message: message}
}

// Rejected builds a venue-refusal error carrying the venue's codes.
func Rejected(op string, retcode int, comment string, venueCode int, venueMsg string) *Error {
	return &Error{
		Kind:      KindRejected,
		Op:        op,
		Message:   fmt.Sprintf("%s failed: %s", op, comment),
		Retcode:   retcode,
		VenueCode: venueCode,
		VenueMsg:  venueMsg,
	}
}

// Internal wraps an unexpected fault. The wrapped error is logged, not
// exposed to the caller.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Message: "Internal server error", Err: err}
}

// KindOf extracts the Kind from any error. Unknown errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As extracts a typed *Error, wrapping foreign errors as internal.
func As(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(op, err)
}
