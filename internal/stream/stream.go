// Package stream carries one exchange's text deltas to the HTTP caller as a
// chunked response body. The caller cancels by dropping the connection; that
// surfaces to the producer as the request context ending, not as a message.
package stream

import (
	"errors"
	"io"
	"net/http"
)

// ErrorTrailer is the HTTP trailer that carries a trailing failure signal.
// It is how a commit failure is reported after the content already streamed
// successfully.
const ErrorTrailer = "X-Chat-Error"

// Sink is the orchestrator's view of the transport: an ordered, exactly-once
// chunk writer for a single exchange.
type Sink interface {
	// Start commits the response as a stream. It must be called before the
	// first Send and must flush immediately, so that client aborts are
	// observable even before the first token arrives.
	Start() error
	Send(chunk string) error
	Started() bool
}

// HTTPSink streams chunks over a chunked HTTP response body.
type HTTPSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func NewHTTPSink(w http.ResponseWriter) (*HTTPSink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support streaming")
	}
	return &HTTPSink{w: w, flusher: flusher}, nil
}

func (s *HTTPSink) Start() error {
	if s.started {
		return nil
	}
	s.started = true

	s.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Trailer", ErrorTrailer)
	s.w.WriteHeader(http.StatusOK)

	// Zero-length flush. Without bytes on the wire some client/server pairs
	// never notice an abort, so force the headers out now.
	s.flusher.Flush()
	return nil
}

func (s *HTTPSink) Send(chunk string) error {
	if _, err := io.WriteString(s.w, chunk); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *HTTPSink) Started() bool {
	return s.started
}

// Abort records the failure in the trailer and tears the connection down, so
// the consumer sees an abnormal close instead of a clean completion.
func (s *HTTPSink) Abort(code string) {
	s.w.Header().Set(ErrorTrailer, code)
	panic(http.ErrAbortHandler)
}

// FinishWithError ends the stream cleanly but records a trailing error.
// Used when the generated text reached the caller in full but persisting it
// failed; the caller must decide whether to warn or retry.
func (s *HTTPSink) FinishWithError(code string) {
	s.w.Header().Set(ErrorTrailer, code)
}
