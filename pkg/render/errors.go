package render

import (
	"errors"
	"fmt"
)

// ErrRenderFailed is wrapped by every error that comes from the backend.
var ErrRenderFailed = errors.New("render failed")

// ErrEmptyImage is returned when the backend answers 2xx with no bytes.
var ErrEmptyImage = errors.New("rendering backend returned an empty image")

// Error is a failed call to the rendering backend.
type Error struct {
	// StatusCode is the backend's HTTP status, or 0 when no response arrived.
	StatusCode int
	// Body is the start of the backend's response body.
	Body string
	// Err is the underlying transport error, if any.
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("render failed: %v", e.Err)
	case e.Body != "":
		return fmt.Sprintf("render failed: backend returned %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("render failed: backend returned %d", e.StatusCode)
}

// Unwrap lets errors.Is match ErrRenderFailed and the transport error.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRenderFailed, e.Err}
	}
	return []error{ErrRenderFailed}
}
