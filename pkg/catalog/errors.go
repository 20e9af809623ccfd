package catalog

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed catalog fetch.
type ErrorKind string

const (
	// KindInvalidURL means the request URL could not be built or parsed.
	KindInvalidURL ErrorKind = "invalid_url"

	// KindRequestFailed means the transport failed (timeout, reset, TLS, ...).
	KindRequestFailed ErrorKind = "request_failed"

	// KindInvalidResponse means upstream answered with a non-2xx status.
	KindInvalidResponse ErrorKind = "invalid_response"

	// KindNoData means upstream answered with an empty body.
	KindNoData ErrorKind = "no_data"

	// KindDecodingFailed means the body was not the expected JSON.
	KindDecodingFailed ErrorKind = "decoding_failed"

	// KindOffline means the host could not be reached at all.
	KindOffline ErrorKind = "offline"

	// KindUnknown covers everything else.
	KindUnknown ErrorKind = "unknown"
)

// Error is a typed catalog fetch failure. Error() returns the
// human-readable description shown to the user.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidURL:
		return "The URL used for this request is not valid."
	case KindRequestFailed:
		return fmt.Sprintf("The network request failed: %s.", causeText(e.Err))
	case KindInvalidResponse:
		return fmt.Sprintf("The server responded with an unexpected status code: %d.", e.StatusCode)
	case KindNoData:
		return "The server returned no data."
	case KindDecodingFailed:
		return fmt.Sprintf("Failed to decode data: %s.", causeText(e.Err))
	case KindOffline:
		return "You appear to be offline. Please check your connection."
	default:
		return "An unknown error occurred."
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so callers can write
// errors.Is(err, &catalog.Error{Kind: catalog.KindOffline}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func causeText(err error) string {
	if err == nil {
		return "unknown cause"
	}
	return err.Error()
}

// NewError builds an *Error of the given kind wrapping cause.
func NewError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// StatusError builds an InvalidResponse error for an unexpected status code.
func StatusError(status int) *Error {
	return &Error{Kind: KindInvalidResponse, StatusCode: status}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// Describe returns the user-visible description of err. Errors outside the
// catalog taxonomy are described as unknown.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Error()
	}
	return (&Error{Kind: KindUnknown}).Error()
}
