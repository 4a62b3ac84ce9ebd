package fabric

import (
	"errors"
	"fmt"
)

// classifiedError is implemented by every error kind of this package.
type classifiedError interface {
	error
	classified()
}

func (*ValidationError) classified()       {}
func (*ConnectionError) classified()       {}
func (*TimeoutError) classified()          {}
func (*APIStatusError) classified()        {}
func (*APIError) classified()              {}
func (*MalformedDataError) classified()    {}
func (*EmptyStreamError) classified()      {}
func (*IncompleteStreamError) classified() {}

// IsClassified reports whether err (or an error it wraps) is one of the
// error kinds declared by this package.
func IsClassified(err error) bool {
	var c classifiedError
	return errors.As(err, &c)
}

// ValidationError reports bad input to a tool before any request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Message)
}

// ConnectionError reports that the Fabric API could not be reached, or that
// the connection broke while the response was being read.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: failed to reach Fabric API at %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError reports that the Fabric API did not respond within the deadline.
type TimeoutError struct {
	URL string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout error: Fabric API at %s did not respond in time: %v", e.URL, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// APIStatusError is returned for any non-2xx HTTP response.
type APIStatusError struct {
	StatusCode int    // HTTP status code (e.g., 404, 500)
	Status     string // Full status text (e.g., "404 Not Found")
	Body       string // Response body text, possibly empty
}

func (e *APIStatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("Fabric API HTTP error %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("Fabric API HTTP error %d: %s", e.StatusCode, e.Status)
}

// APIError is an explicit error event delivered inside the SSE stream.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Fabric API error: %s", e.Message)
}

// MalformedDataError reports a payload that could not be decoded.
type MalformedDataError struct {
	Data string
	Err  error
}

func (e *MalformedDataError) Error() string {
	return fmt.Sprintf("malformed data from Fabric API: %v (payload %q)", e.Err, truncate(e.Data, 120))
}

func (e *MalformedDataError) Unwrap() error { return e.Err }

// EmptyStreamError reports a stream that carried no usable events at all.
type EmptyStreamError struct{}

func (e *EmptyStreamError) Error() string {
	return "empty stream error: no data received from Fabric API"
}

// IncompleteStreamError reports a stream that ended without a terminal event.
type IncompleteStreamError struct {
	Events int // number of decoded events before the stream ended
}

func (e *IncompleteStreamError) Error() string {
	return fmt.Sprintf("incomplete stream error: stream ended after %d events without a completion event", e.Events)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
