package transport

import (
	"errors"
	"fmt"
)

// ErrTransport matches every failure to reach or get a successful answer
// from the backend.
var ErrTransport = errors.New("transport: request failed")

// Error describes a failed backend request.
type Error struct {
	// Endpoint is the path that was requested, e.g. "/chat".
	Endpoint string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Body is the response body returned as diagnostic text.
	Body string

	// Err is the underlying network error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transport %s: %v", e.Endpoint, e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("transport %s: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("transport %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Is makes errors.Is(err, ErrTransport) hold for every *Error.
func (e *Error) Is(target error) bool {
	return target == ErrTransport
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsServerError returns true for 5xx responses.
func (e *Error) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}
