package bridge

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for stream lifecycle.
var (
	// ErrStreamCancelled is returned from Next after a stream is cancelled
	// without a more specific reason.
	ErrStreamCancelled = errors.New("stream cancelled")

	// ErrBodyLocked reports a response body that was already consumed before
	// reaching the outbound adapter.
	ErrBodyLocked = errors.New("response body has already been consumed")
)

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// PayloadTooLargeError reports a declared content length above the
// configured body size limit. It is returned synchronously at adaptation
// time, before any bytes are read.
type PayloadTooLargeError struct {
	Declared int64 // value of the content-length header
	Limit    int64 // configured ceiling
}

// Error returns the error message.
func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("content-length of %d exceeds body size limit of %d bytes", e.Declared, e.Limit)
}

// StatusCode returns the HTTP status code.
func (e *PayloadTooLargeError) StatusCode() int { return http.StatusRequestEntityTooLarge }

// BodySizeExceededError reports a request body whose running total outgrew
// its effective limit mid-stream. It is surfaced to the body consumer, not
// to the adapter's caller.
type BodySizeExceededError struct {
	Limit int64

	// Declared is true when the limit came from the content-length header
	// rather than the configured ceiling.
	Declared bool
}

// Error returns the error message.
func (e *BodySizeExceededError) Error() string {
	if e.Declared {
		return fmt.Sprintf("request body size exceeded declared content-length of %d bytes", e.Limit)
	}
	return fmt.Sprintf("request body size exceeded configured limit of %d bytes", e.Limit)
}

// StatusCode returns the HTTP status code.
func (e *BodySizeExceededError) StatusCode() int { return http.StatusRequestEntityTooLarge }

// ErrorStatus extracts the HTTP status code from an error. Returns
// http.StatusInternalServerError if the error does not implement StatusCoder.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}
