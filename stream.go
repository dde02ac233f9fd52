package bridge

import (
	"context"
	"io"
	"strings"
	"sync"
)

// Stream is a pull-based byte producer. A stream is read at most once end
// to end; there is no replay.
type Stream interface {
	// Next returns the next chunk, io.EOF at end of stream, or the error
	// that terminated the stream. The returned slice is owned by the
	// caller.
	Next(ctx context.Context) ([]byte, error)

	// Cancel stops the stream and releases the producer-side resource with
	// the given reason. Cancelling twice is a no-op.
	Cancel(reason error)
}

// Exclusive is optionally implemented by streams that support single-reader
// acquisition. Acquire claims the stream and returns false if it was
// already claimed.
type Exclusive interface {
	Acquire() bool
}

// readChunkSize is the chunk size for io.Reader-backed streams.
const readChunkSize = 32 << 10

// ReaderStream adapts an io.Reader into a Stream.
type ReaderStream struct {
	mu        sync.Mutex
	r         io.Reader
	acquired  bool
	cancelled bool
	reason    error
}

// NewReaderStream returns a Stream that pulls chunks from r. If r is an
// io.Closer, cancelling the stream closes it.
func NewReaderStream(r io.Reader) *ReaderStream {
	return &ReaderStream{r: r}
}

// TextStream returns a Stream over the bytes of s.
func TextStream(s string) *ReaderStream {
	return NewReaderStream(strings.NewReader(s))
}

// Next returns the next chunk from the underlying reader.
func (s *ReaderStream) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.cancelled {
		reason := s.reason
		s.mu.Unlock()
		return nil, reason
	}
	r := s.r
	s.mu.Unlock()

	buf := make([]byte, readChunkSize)
	n, err := r.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil {
		err = io.EOF
	}
	return nil, err
}

// Cancel stops the stream. Closes the underlying reader if it is an
// io.Closer.
func (s *ReaderStream) Cancel(reason error) {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	if reason == nil {
		reason = ErrStreamCancelled
	}
	s.reason = reason
	r := s.r
	s.mu.Unlock()

	if c, ok := r.(io.Closer); ok {
		//nolint:errcheck,gosec // best-effort release on cancel
		c.Close()
	}
}

// Acquire claims the stream for a single reader.
func (s *ReaderStream) Acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acquired {
		return false
	}
	s.acquired = true
	return true
}
