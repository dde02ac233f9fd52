package bridge_test

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/bridge"
	"github.com/bjaus/bridge/bridgetest"
)

func TestNewRequest_basic_fields(t *testing.T) {
	t.Parallel()

	h := bridgetest.NewRequestHandle(http.MethodGet, "/users?page=2")
	h.Headers.Set("Accept", "application/json")

	req, err := bridge.NewRequest(h, bridge.WithBase("https://example.com"))
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/users?page=2", req.URL.String())
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.Nil(t, req.Body)
	assert.NotEmpty(t, req.ID)
}

func TestNewRequest_header_copy_is_independent(t *testing.T) {
	t.Parallel()

	h := bridgetest.NewRequestHandle(http.MethodGet, "/")
	h.Headers.Set("X-Version", "1")

	req, err := bridge.NewRequest(h)
	require.NoError(t, err)

	h.Headers.Set("X-Version", "2")
	assert.Equal(t, "1", req.Header.Get("X-Version"))
}

func TestNewRequest_base_trailing_slash(t *testing.T) {
	t.Parallel()

	h := bridgetest.NewRequestHandle(http.MethodGet, "/users")

	req, err := bridge.NewRequest(h, bridge.WithBase("https://example.com/"))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/users", req.URL.String())
}

func TestReconstructPath_mounted_join_matches_original(t *testing.T) {
	t.Parallel()

	h := bridgetest.NewRequestHandle(http.MethodGet, "/users")
	h.MountPrefix = "/api"
	h.OriginalPath = "/api/users"
	h.Mounted = true

	assert.Equal(t, "/api/users", bridge.ReconstructPath(h))
}

func TestReconstructPath_spurious_trailing_slash(t *testing.T) {
	t.Parallel()

	// Mounting "/api" rewrites "/api" into relative path "/"; the naive
	// join "/api/" never appeared on the wire.
	h := bridgetest.NewRequestHandle(http.MethodGet, "/")
	h.MountPrefix = "/api"
	h.OriginalPath = "/api"
	h.Mounted = true

	assert.Equal(t, "/api", bridge.ReconstructPath(h))
}

func TestReconstructPath_original_has_trailing_slash(t *testing.T) {
	t.Parallel()

	h := bridgetest.NewRequestHandle(http.MethodGet, "/")
	h.MountPrefix = "/api"
	h.OriginalPath = "/api/?x=1"
	h.Mounted = true

	assert.Equal(t, "/api/", bridge.ReconstructPath(h))
}

func TestReconstructPath_unmounted(t *testing.T) {
	t.Parallel()

	h := bridgetest.NewRequestHandle(http.MethodGet, "/plain")
	assert.Equal(t, "/plain", bridge.ReconstructPath(h))
}

func TestNewRequest_bodyless_methods(t *testing.T) {
	t.Parallel()

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		h := bridgetest.NewRequestHandle(method, "/")
		h.Headers.Set("Content-Length", "42")
		h.Src = bridgetest.NewSource()
		h.Parsed = &bridge.BodyValue{Kind: bridge.BodyText, Text: "ignored"}

		req, err := bridge.NewRequest(h)
		require.NoError(t, err)
		assert.Nil(t, req.Body, method)
	}
}

func TestNewRequest_content_length_zero_means_no_body(t *testing.T) {
	t.Parallel()

	h := bridgetest.NewRequestHandle(http.MethodPost, "/")
	h.Headers.Set("Content-Length", "0")
	h.Src = bridgetest.NewSource()

	req, err := bridge.NewRequest(h)
	require.NoError(t, err)
	assert.Nil(t, req.Body)
}

func TestNewRequest_http1_without_framing_means_no_body(t *testing.T) {
	t.Parallel()

	h := bridgetest.NewRequestHandle(http.MethodPost, "/")
	h.Src = bridgetest.NewSource()

	req, err := bridge.NewRequest(h)
	require.NoError(t, err)
	assert.Nil(t, req.Body)
}

func TestNewRequest_http2_without_length_has_body(t *testing.T) {
	t.Parallel()

	h := bridgetest.NewRequestHandle(http.MethodPost, "/")
	h.Proto = 2
	h.Src = bridgetest.NewSource()

	req, err := bridge.NewRequest(h)
	require.NoError(t, err)
	assert.NotNil(t, req.Body)
}

func TestNewRequest_chunked_has_body(t *testing.T) {
	t.Parallel()

	h := bridgetest.NewRequestHandle(http.MethodPost, "/")
	h.Headers.Set("Transfer-Encoding", "chunked")
	h.Src = bridgetest.NewSource()

	req, err := bridge.NewRequest(h)
	require.NoError(t, err)
	assert.NotNil(t, req.Body)
}

func TestNewRequest_declared_length_over_limit_fails_fast(t *testing.T) {
	t.Parallel()

	h := bridgetest.NewRequestHandle(http.MethodPost, "/")
	h.Headers.Set("Content-Length", "100")
	h.Src = bridgetest.NewSource()

	_, err := bridge.NewRequest(h, bridge.WithBodySizeLimit(10))

	var tooLarge *bridge.PayloadTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, int64(100), tooLarge.Declared)
	assert.Equal(t, int64(10), tooLarge.Limit)
	assert.Equal(t, http.StatusRequestEntityTooLarge, bridge.ErrorStatus(err))

	// Failure happens at adaptation time, before any bytes are read.
	destroyed, _ := h.Src.Destroyed()
	assert.False(t, destroyed)
	assert.Equal(t, 0, h.Src.Resumes())
}

func TestNewRequest_raw_stream_wins_over_parsed_body(t *testing.T) {
	t.Parallel()

	h := bridgetest.NewRequestHandle(http.MethodPost, "/")
	h.Headers.Set("Content-Length", "4")
	h.Src = bridgetest.NewSource()
	h.Parsed = &bridge.BodyValue{Kind: bridge.BodyText, Text: "stale"}

	req, err := bridge.NewRequest(h)
	require.NoError(t, err)
	require.NotNil(t, req.Body)

	h.Src.Push([]byte("live"))
	chunk, err := req.Body.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "live", string(chunk))
}

func TestNewRequest_parsed_text_body(t *testing.T) {
	t.Parallel()

	h := bridgetest.NewRequestHandle(http.MethodPost, "/")
	h.Ended = true // raw stream already consumed upstream
	h.Src = bridgetest.NewSource()
	h.Parsed = &bridge.BodyValue{Kind: bridge.BodyText, Text: "buffered"}

	req, err := bridge.NewRequest(h)
	require.NoError(t, err)
	require.NotNil(t, req.Body)

	chunk, err := req.Body.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "buffered", string(chunk))

	_, err = req.Body.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestNewRequest_parsed_form_body(t *testing.T) {
	t.Parallel()

	h := bridgetest.NewRequestHandle(http.MethodPost, "/")
	h.Ended = true
	h.Src = bridgetest.NewSource()
	h.Headers.Set("Content-Type", "application/x-www-form-urlencoded")
	h.Parsed = &bridge.BodyValue{
		Kind:  bridge.BodyJSON,
		Value: map[string]any{"tags": []any{"x", "y"}, "none": nil},
	}

	req, err := bridge.NewRequest(h)
	require.NoError(t, err)
	require.NotNil(t, req.Body)

	chunk, err := req.Body.Next(context.Background())
	require.NoError(t, err)

	parsed, err := url.ParseQuery(string(chunk))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, parsed["tags"])
	assert.Equal(t, []string{""}, parsed["none"])
}

func TestNewRequest_no_body_at_all(t *testing.T) {
	t.Parallel()

	h := bridgetest.NewRequestHandle(http.MethodPost, "/")
	req, err := bridge.NewRequest(h)
	require.NoError(t, err)
	assert.Nil(t, req.Body)
}

func TestCancelledBody_is_empty_and_cancelled(t *testing.T) {
	t.Parallel()

	body := bridge.NewCancelledBody()
	_, err := body.Next(context.Background())
	assert.ErrorIs(t, err, bridge.ErrStreamCancelled)
}

func TestBufferedBody_empty_payload(t *testing.T) {
	t.Parallel()

	body := bridge.NewBufferedBody(nil)
	_, err := body.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}
