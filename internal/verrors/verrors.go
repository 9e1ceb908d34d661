// Package verrors defines the typed error taxonomy of §7 ("ERROR
// HANDLING DESIGN"). Handlers return these values; WriteHTTP converts
// them to HTTP responses where they meet the response writer (the
// WebDAV handler's ServeHTTP, the proxy's ErrorHandler, and
// internal/router when a service handler cannot be built). Grounded
// in the teacher's internal/webdav/error_handler.go HTTPError /
// customErrorHandler.mapError pattern, generalized from NZB-specific
// causes to vestibule's causes.
package verrors

import "net/http"

// Kind is the error taxonomy of §7.
type Kind int

const (
	Unauthorized Kind = iota
	Forbidden
	NotFound
	BadRequest
	RangeNotSatisfiable
	UpstreamUnavailable
	Internal
)

// Error is a typed, loggable error carrying its HTTP status mapping.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Status maps a Kind to its HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case BadRequest:
		return http.StatusBadRequest
	case RangeNotSatisfiable:
		return http.StatusRequestedRangeNotSatisfiable
	case UpstreamUnavailable:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Newf(kind Kind, message string) *Error { return New(kind, message, nil) }

// WriteHTTP converts err to an HTTP response with a short textual
// body. Non-*Error values are treated as Internal per §7's
// never-panics rule — a surprising failure degrades to 500, it never
// escapes as a panic.
func WriteHTTP(w http.ResponseWriter, err error) int {
	ve, ok := err.(*Error)
	if !ok {
		ve = New(Internal, "internal error", err)
	}
	http.Error(w, ve.Message, ve.Status())
	return ve.Status()
}
