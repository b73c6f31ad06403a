package llm

import (
	"errors"
	"fmt"
)

// ErrUnavailable marks a backend that could not be constructed or reached:
// missing weights file, unknown provider kind, runtime that failed to load
// the model. Wrapped errors never contain API keys.
var ErrUnavailable = errors.New("provider unavailable")

// RequestError means the backend rejected the request before producing any
// content, e.g. a non-2xx status from a remote chat-completions endpoint.
type RequestError struct {
	StatusCode int
	Detail     string
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider rejected request (status %d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("provider rejected request: %s", e.Detail)
}

// StreamError means the stream broke after content had started flowing. The
// partial output already relayed to the caller must not be committed.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("provider stream interrupted: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }
