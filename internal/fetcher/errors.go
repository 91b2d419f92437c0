package fetcher

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure. All kinds are soft: callers skip the
// current target and continue the run.
type Kind string

const (
	// KindTimeout means the request exceeded the configured timeout.
	KindTimeout Kind = "timeout"
	// KindConnection means the request failed before an HTTP response.
	KindConnection Kind = "connection"
	// KindHTTPStatus means the server answered with a non-success status.
	KindHTTPStatus Kind = "http_status"
	// KindMalformed means the URL or response body was unusable.
	KindMalformed Kind = "malformed"
)

// Error is a classified fetch failure.
type Error struct {
	// Kind of failure
	Kind Kind
	// URL that failed
	URL string
	// StatusCode when Kind is KindHTTPStatus, zero otherwise
	StatusCode int
	// Err is the underlying cause, if any
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Kind == KindHTTPStatus:
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
