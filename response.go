package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Response is a fully-formed, transport-agnostic response. It is consumed
// exactly once by Send.
type Response struct {
	// Status is the numeric status code. Zero means 200.
	Status int

	// Header holds the response headers. Multiple Set-Cookie values may be
	// stored combined in a single entry; Send splits them back out.
	Header Header

	// Body is the pull-based response body, or nil for a bodiless
	// response.
	Body Stream
}

// Send writes resp to the transport response handle: headers, status, then
// the body, chunk by chunk, honoring the handle's write-acceptance signal.
// The handle is terminated exactly once on every exit path: normal
// completion, producer error, or client disconnect.
//
// Send returns after the handle is terminated or a fatal write error
// occurred. Header rejections are recovered locally with a best-effort 500
// response and do not surface as an error.
func Send(ctx context.Context, h ResponseHandle, resp *Response, opts ...Option) error {
	cfg := applyOptions(opts)

	for key, values := range resp.Header {
		if strings.EqualFold(key, "Set-Cookie") {
			for _, v := range values {
				for _, cookie := range SplitCookies(v) {
					if err := h.SetHeader(key, cookie); err != nil {
						return abortOnHeaderFailure(h, resp, err, cfg.logger)
					}
				}
			}
			continue
		}
		for _, v := range values {
			if err := h.SetHeader(key, v); err != nil {
				return abortOnHeaderFailure(h, resp, err, cfg.logger)
			}
		}
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	h.WriteHead(status)

	if resp.Body == nil {
		return h.End()
	}

	// A body consumed before reaching the adapter is an upstream contract
	// violation; answer with a diagnostic rather than an exception.
	if ex, ok := resp.Body.(Exclusive); ok && !ex.Acquire() {
		cfg.logger.Warn("response body already consumed")
		//nolint:errcheck,gosec // best-effort diagnostic
		h.Write([]byte(ErrBodyLocked.Error()))
		return h.End()
	}

	if h.Destroyed() {
		resp.Body.Cancel(nil)
		return nil
	}

	return stream(ctx, h, resp.Body, cfg)
}

// stream drives the body onto the handle. Cleanup runs exactly once no
// matter which exit path fires first: end-of-stream, read error, write
// error, sink close, or sink error.
func stream(ctx context.Context, h ResponseHandle, body Stream, cfg config) error {
	drained := make(chan struct{}, 1)
	h.OnDrain(func() {
		select {
		case drained <- struct{}{}:
		default:
		}
	})

	var once sync.Once
	cleanup := func(reason error) {
		once.Do(func() {
			// The body may already be in an error state; its Cancel is
			// required to be idempotent and non-panicking.
			body.Cancel(reason)
			if reason != nil {
				cfg.logger.Debug("response stream aborted", slog.String("reason", reason.Error()))
				h.Destroy(reason)
			}
		})
	}
	h.OnClose(func() { cleanup(nil) })
	h.OnError(cleanup)

	for {
		chunk, err := body.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			cleanup(err)
			return err
		}

		if cfg.writeLimiter != nil {
			if err := waitWriteLimiter(ctx, cfg.writeLimiter, len(chunk)); err != nil {
				cleanup(err)
				return err
			}
		}

		accepted, err := h.Write(chunk)
		if err != nil {
			cleanup(err)
			return err
		}
		if !accepted {
			if cfg.noDrainWait {
				// Degraded mode for sinks that never signal drain: keep
				// writing and accept the buffering risk.
				cfg.logger.Debug("write blocked; drain wait disabled")
				continue
			}
			cfg.logger.Debug("write blocked; waiting for drain")
			select {
			case <-drained:
			case <-ctx.Done():
				cleanup(ctx.Err())
				return ctx.Err()
			}
		}
	}

	// End fires once, after the loop fully drains. Ending after each chunk
	// truncates multi-chunk bodies on transports that treat End as final.
	return h.End()
}

// abortOnHeaderFailure recovers from a rejected header value: previously
// set headers are stripped and a best-effort 500 carrying the error text is
// written. The failure is handled here, not surfaced to the caller.
func abortOnHeaderFailure(h ResponseHandle, resp *Response, err error, log *slog.Logger) error {
	log.Warn("response header rejected", slog.String("error", err.Error()))

	for _, key := range h.HeaderKeys() {
		h.DelHeader(key)
	}
	h.WriteHead(http.StatusInternalServerError)
	//nolint:errcheck,gosec // best-effort after WriteHead
	h.Write([]byte(err.Error()))
	//nolint:errcheck,gosec // best-effort termination
	h.End()

	if resp.Body != nil {
		resp.Body.Cancel(err)
	}
	return nil
}

// waitWriteLimiter paces a chunk write against the configured byte-rate
// limiter. Chunks larger than the limiter's burst are waited for in
// burst-sized installments so they are never rejected outright.
func waitWriteLimiter(ctx context.Context, l *rate.Limiter, n int) error {
	for n > 0 {
		step := n
		if b := l.Burst(); step > b {
			step = b
		}
		if err := l.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
