package extractor

import (
	"errors"
	"fmt"
)

// Kind classifies an extraction failure. Both kinds are soft: the failing
// candidate is recorded and skipped, the batch continues.
type Kind string

const (
	// KindFetch means the candidate page could not be fetched or parsed.
	KindFetch Kind = "fetch"
	// KindEmptyContent means the page yielded no readable text.
	KindEmptyContent Kind = "empty_content"
)

// Error is a classified extraction failure for a single candidate.
type Error struct {
	// Kind of failure
	Kind Kind
	// URL of the candidate that failed
	URL string
	// Err is the underlying cause, if any
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.URL, e.Kind)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var ee *Error
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}
