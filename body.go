package bridge

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// BodyReader bridges a push-style transport body source into a pull-based
// Stream, enforcing a byte ceiling and pausing the source whenever no pull
// is outstanding so a slow consumer never forces unbounded buffering.
//
// A BodyReader is safe for use by one consumer goroutine alongside the
// transport's callback goroutine.
type BodyReader struct {
	src BodySource

	mu        sync.Mutex
	queue     [][]byte
	wake      chan struct{}
	done      bool
	err       error
	cancelled bool
	reason    error
	acquired  bool
	flowing   bool

	read     int64
	limit    int64 // 0 = unlimited
	declared bool  // limit derives from the content-length header

	log *slog.Logger
}

// newBodyReader wires a BodyReader to a push source. limit of 0 means
// unlimited; declared records whether the limit came from the request's
// content-length header.
func newBodyReader(src BodySource, limit int64, declared bool, log *slog.Logger) *BodyReader {
	b := &BodyReader{
		src:      src,
		wake:     make(chan struct{}),
		limit:    limit,
		declared: declared,
		log:      log,
	}
	src.OnData(b.push)
	src.OnEnd(b.finish)
	src.OnError(b.fail)
	return b
}

// newBufferedBody returns a BodyReader over an already-materialized body.
func newBufferedBody(data []byte) *BodyReader {
	b := &BodyReader{wake: make(chan struct{}), done: true, log: discardLogger}
	if len(data) > 0 {
		b.queue = [][]byte{data}
	}
	return b
}

// newCancelledBody returns an already-cancelled empty BodyReader, used when
// the transport destroyed the request before adaptation.
func newCancelledBody() *BodyReader {
	return &BodyReader{
		wake:      make(chan struct{}),
		cancelled: true,
		reason:    ErrStreamCancelled,
		log:       discardLogger,
	}
}

// push handles a data callback from the source.
func (b *BodyReader) push(p []byte) {
	b.mu.Lock()
	if b.cancelled || b.done || b.err != nil {
		b.mu.Unlock()
		return
	}

	b.read += int64(len(p))
	if b.limit > 0 && b.read > b.limit {
		err := &BodySizeExceededError{Limit: b.limit, Declared: b.declared}
		b.err = err
		src := b.src
		b.signalLocked()
		b.mu.Unlock()
		b.log.Debug("request body limit exceeded",
			slog.Int64("limit", b.limit), slog.Bool("declared", b.declared))
		if src != nil {
			src.Destroy(err)
		}
		return
	}

	chunk := make([]byte, len(p))
	copy(chunk, p)
	b.queue = append(b.queue, chunk)

	// Demand is satisfied; stop the source until the next pull.
	var src BodySource
	if b.flowing {
		b.flowing = false
		src = b.src
	}
	b.signalLocked()
	b.mu.Unlock()

	if src != nil {
		src.Pause()
	}
}

// finish handles the completion callback from the source.
func (b *BodyReader) finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancelled || b.done || b.err != nil {
		return
	}
	b.done = true
	b.signalLocked()
}

// fail handles the failure callback from the source.
func (b *BodyReader) fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancelled || b.done || b.err != nil {
		return
	}
	b.err = err
	b.signalLocked()
}

// Next returns the next body chunk. It returns io.EOF at the end of the
// body, the stream's terminal error after a source failure or size-limit
// trip, and the cancellation reason after Cancel.
func (b *BodyReader) Next(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	for {
		if b.cancelled {
			reason := b.reason
			b.mu.Unlock()
			return nil, reason
		}
		if len(b.queue) > 0 {
			chunk := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return chunk, nil
		}
		if b.err != nil {
			err := b.err
			b.mu.Unlock()
			return nil, err
		}
		if b.done {
			b.mu.Unlock()
			return nil, io.EOF
		}

		// A pull is outstanding and the queue is empty: restart the source.
		var src BodySource
		if !b.flowing && b.src != nil {
			b.flowing = true
			src = b.src
		}
		wake := b.wake
		b.mu.Unlock()

		if src != nil {
			src.Resume()
		}

		select {
		case <-wake:
		case <-ctx.Done():
			b.Cancel(ctx.Err())
			return nil, ctx.Err()
		}
		b.mu.Lock()
	}
}

// Cancel stops the body and destroys the underlying source with the given
// reason. Cancelling twice is a no-op.
func (b *BodyReader) Cancel(reason error) {
	b.mu.Lock()
	if b.cancelled {
		b.mu.Unlock()
		return
	}
	b.cancelled = true
	if reason == nil {
		reason = ErrStreamCancelled
	}
	b.reason = reason
	src := b.src
	b.signalLocked()
	b.mu.Unlock()

	b.log.Debug("request body cancelled", slog.String("reason", reason.Error()))
	if src != nil {
		src.Destroy(reason)
	}
}

// Acquire claims the body for a single reader.
func (b *BodyReader) Acquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.acquired {
		return false
	}
	b.acquired = true
	return true
}

// BytesRead returns the cumulative number of body bytes received from the
// source.
func (b *BodyReader) BytesRead() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.read
}

// signalLocked wakes all pending pulls. Callers must hold b.mu.
func (b *BodyReader) signalLocked() {
	close(b.wake)
	b.wake = make(chan struct{})
}
