package requests

import (
	"errors"
	"fmt"
)

// Common request errors
var (
	// ErrIllegalArgument indicates conflicting or missing construction parameters.
	ErrIllegalArgument = errors.New("illegal argument")

	// ErrUnknownResourceOrMethod indicates the discovery document has no such
	// resource or method.
	ErrUnknownResourceOrMethod = errors.New("unknown resource or method")

	// ErrMissingInterpolationValue indicates a template placeholder without a value.
	ErrMissingInterpolationValue = errors.New("missing interpolation value")

	// ErrUnauthorized indicates no access token could be obtained.
	ErrUnauthorized = errors.New("no authorization")

	// ErrParse indicates a response body that is not valid JSON.
	ErrParse = errors.New("response did not return a parsable json object")

	// ErrTransport indicates a network-level failure.
	ErrTransport = errors.New("transport failure")

	// ErrHTTPStatus indicates a non-2xx response when exceptions are not muted.
	ErrHTTPStatus = errors.New("unexpected http status")
)

// Error represents a request-layer error with operation context.
type Error struct {
	Op  string // Operation that failed (e.g., "CreateRequest", "Resolve")
	Err error  // Underlying error
	Msg string // Additional context
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ParseError carries the raw body of a response that failed to parse.
type ParseError struct {
	Body string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %v (body: %q)", ErrParse, e.Err, truncate(e.Body, 512))
}

// Is reports ErrParse so callers can match with errors.Is.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// TransportError describes a request that could not be completed, along with
// the URL and options that were attempted.
type TransportError struct {
	URL        string
	Options    *TransportOptions
	StatusCode int // set when the failure is an unmuted non-2xx status
	Err        error
}

func (e *TransportError) Error() string {
	method := ""
	if e.Options != nil {
		method = e.Options.Method
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: %v (status %d)", method, e.URL, e.Err, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v: %v", method, e.URL, ErrTransport, e.Err)
}

// Is reports ErrTransport for connection failures so callers can match with
// errors.Is. Status failures match ErrHTTPStatus through Unwrap.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport && e.StatusCode == 0
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// newError is a shorthand for building an *Error.
func newError(op string, err error, format string, args ...any) *Error {
	return &Error{Op: op, Err: err, Msg: fmt.Sprintf(format, args...)}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
