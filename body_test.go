package bridge_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/bridge"
	"github.com/bjaus/bridge/bridgetest"
)

// streamingRequest builds an adapted POST request backed by a scriptable
// push source using chunked transfer (no declared length).
func streamingRequest(t *testing.T, opts ...bridge.Option) (*bridge.Request, *bridgetest.Source) {
	t.Helper()

	h := bridgetest.NewRequestHandle(http.MethodPost, "/upload")
	h.Headers.Set("Transfer-Encoding", "chunked")
	h.Src = bridgetest.NewSource()

	req, err := bridge.NewRequest(h, opts...)
	require.NoError(t, err)
	require.NotNil(t, req.Body)
	return req, h.Src
}

func TestBodyReader_delivers_chunks_in_order(t *testing.T) {
	t.Parallel()

	req, src := streamingRequest(t)

	src.Push([]byte("alpha"))
	src.Push([]byte("beta"))
	src.Finish()

	ctx := context.Background()

	chunk, err := req.Body.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(chunk))

	chunk, err = req.Body.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "beta", string(chunk))

	_, err = req.Body.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, int64(10), req.Body.BytesRead())
}

func TestBodyReader_resumes_source_on_demand(t *testing.T) {
	t.Parallel()

	req, src := streamingRequest(t)

	// Nothing pulled yet: the source must stay paused.
	assert.Equal(t, 0, src.Resumes())

	got := make(chan []byte, 1)
	go func() {
		chunk, err := req.Body.Next(context.Background())
		if err == nil {
			got <- chunk
		}
	}()

	require.Eventually(t, func() bool { return src.Resumes() == 1 },
		time.Second, time.Millisecond)

	src.Push([]byte("data"))

	select {
	case chunk := <-got:
		assert.Equal(t, "data", string(chunk))
	case <-time.After(time.Second):
		t.Fatal("pull did not complete")
	}

	// Demand was satisfied: the chunk delivery paused the source again.
	assert.True(t, src.Paused())
}

func TestBodyReader_declared_limit_exceeded(t *testing.T) {
	t.Parallel()

	h := bridgetest.NewRequestHandle(http.MethodPost, "/upload")
	h.Headers.Set("Content-Length", "10")
	h.Src = bridgetest.NewSource()

	req, err := bridge.NewRequest(h)
	require.NoError(t, err)
	require.NotNil(t, req.Body)

	h.Src.Push([]byte("123456"))
	h.Src.Push([]byte("123456")) // total 12 > declared 10

	ctx := context.Background()

	// The first chunk arrived before the limit tripped.
	chunk, err := req.Body.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "123456", string(chunk))

	_, err = req.Body.Next(ctx)
	var sizeErr *bridge.BodySizeExceededError
	require.ErrorAs(t, err, &sizeErr)
	assert.True(t, sizeErr.Declared)
	assert.Equal(t, int64(10), sizeErr.Limit)
	assert.Contains(t, err.Error(), "content-length")

	destroyed, reason := h.Src.Destroyed()
	assert.True(t, destroyed)
	assert.ErrorAs(t, reason, &sizeErr)

	// Data after the trip is dropped, not double-signalled.
	assert.False(t, h.Src.Push([]byte("more")))
}

func TestBodyReader_configured_limit_exceeded(t *testing.T) {
	t.Parallel()

	req, src := streamingRequest(t, bridge.WithBodySizeLimit(8))

	src.Push([]byte("123456789"))

	_, err := req.Body.Next(context.Background())
	var sizeErr *bridge.BodySizeExceededError
	require.ErrorAs(t, err, &sizeErr)
	assert.False(t, sizeErr.Declared)
	assert.Contains(t, err.Error(), "configured limit")

	destroyed, _ := src.Destroyed()
	assert.True(t, destroyed)
}

func TestBodyReader_cancel_destroys_source(t *testing.T) {
	t.Parallel()

	req, src := streamingRequest(t)

	reason := errors.New("consumer gone")
	req.Body.Cancel(reason)

	destroyed, got := src.Destroyed()
	assert.True(t, destroyed)
	assert.Equal(t, reason, got)

	_, err := req.Body.Next(context.Background())
	assert.Equal(t, reason, err)
}

func TestBodyReader_cancel_is_idempotent(t *testing.T) {
	t.Parallel()

	req, src := streamingRequest(t)

	first := errors.New("first")
	req.Body.Cancel(first)
	req.Body.Cancel(errors.New("second"))

	_, got := src.Destroyed()
	assert.Equal(t, first, got)

	_, err := req.Body.Next(context.Background())
	assert.Equal(t, first, err)
}

func TestBodyReader_source_error_propagates(t *testing.T) {
	t.Parallel()

	req, src := streamingRequest(t)

	srcErr := errors.New("connection reset")
	src.Fail(srcErr)

	_, err := req.Body.Next(context.Background())
	assert.Equal(t, srcErr, err)
}

func TestBodyReader_source_end_after_cancel_is_noop(t *testing.T) {
	t.Parallel()

	req, src := streamingRequest(t)

	req.Body.Cancel(nil)
	src.Finish()
	src.Fail(errors.New("late"))

	_, err := req.Body.Next(context.Background())
	assert.ErrorIs(t, err, bridge.ErrStreamCancelled)
}

func TestBodyReader_context_cancellation(t *testing.T) {
	t.Parallel()

	req, src := streamingRequest(t)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := req.Body.Next(ctx)
		errCh <- err
	}()

	require.Eventually(t, func() bool { return src.Resumes() == 1 },
		time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("pull did not observe cancellation")
	}

	destroyed, _ := src.Destroyed()
	assert.True(t, destroyed)
}

func TestBodyReader_acquire_is_exclusive(t *testing.T) {
	t.Parallel()

	req, _ := streamingRequest(t)

	assert.True(t, req.Body.Acquire())
	assert.False(t, req.Body.Acquire())
}
