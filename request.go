package bridge

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Request is a normalized, transport-agnostic request. It is created once
// per inbound adaptation and never mutated afterward.
type Request struct {
	// URL is the absolute request URL, reconstructed from the configured
	// base and the (possibly remounted) transport path.
	URL *url.URL

	// Method is the HTTP method.
	Method string

	// Header holds the request headers.
	Header Header

	// Body is the lazily-pulled request body, or nil when the request
	// carries none.
	Body *BodyReader

	// ID is a correlation id attached to log records for this request.
	ID string
}

// NewRequest adapts a transport request handle into a Request. Everything
// except body materialization is synchronous; body bytes are pulled lazily
// through Request.Body.
//
// A PayloadTooLargeError is returned immediately when the declared content
// length exceeds the configured body size limit.
func NewRequest(h RequestHandle, opts ...Option) (*Request, error) {
	cfg := applyOptions(opts)

	u, err := url.Parse(strings.TrimSuffix(cfg.base, "/") + reconstructPath(h))
	if err != nil {
		return nil, fmt.Errorf("parse request url: %w", err)
	}

	req := &Request{
		URL:    u,
		Method: h.Method(),
		Header: h.Header().Clone(),
		ID:     newCorrelationID(),
	}

	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		body, err := adaptBody(h, cfg)
		if err != nil {
			return nil, err
		}
		req.Body = body
	}

	cfg.logger.Debug("request adapted",
		slog.String("request_id", req.ID),
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
		slog.Bool("has_body", req.Body != nil))

	return req, nil
}

// reconstructPath recovers the request's true path when sub-router mounting
// has split it into a mount prefix and a relative suffix.
//
// Joining prefix and relative path can introduce a trailing separator the
// original path never had (mount "/api" with relative path "/" yields
// "/api/" for original "/api"). When the join disagrees with the recorded
// original, the original decides: if it ends in a separator the join
// stands, otherwise the bare prefix is used. This preserves one specific
// transport's mounting quirk and is not a general URL algebra.
func reconstructPath(h RequestHandle) string {
	prefix, original, ok := h.MountPath()
	if !ok {
		return h.Path()
	}

	joined := prefix + h.Path()
	if joined == original {
		return joined
	}

	base := original
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	if strings.HasSuffix(base, "/") {
		return joined
	}
	return prefix
}

// adaptBody decides how the request body is materialized: the raw transport
// stream when it is still readable, a re-serialized pre-parsed body
// otherwise, or nil.
func adaptBody(h RequestHandle, cfg config) (*BodyReader, error) {
	// The raw stream is the canonical path and wins even when a pre-parsed
	// body is also present.
	if src := h.Body(); src != nil && !h.Destroyed() && !h.ReadableEnded() {
		return wrapBodySource(h, src, cfg)
	}

	if v, ok := h.ParsedBody(); ok {
		data, err := encodeBodyValue(v, h.Header().Get("Content-Type"))
		if err != nil {
			return nil, fmt.Errorf("serialize parsed body: %w", err)
		}
		return newBufferedBody(data), nil
	}

	return nil, nil
}

// wrapBodySource wraps the raw push source in a size-limited BodyReader,
// or returns nil when protocol rules say the request has no body.
func wrapBodySource(h RequestHandle, src BodySource, cfg config) (*BodyReader, error) {
	declared := int64(-1)
	if cl := h.Header().Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n >= 0 {
			declared = n
		}
	}

	chunked := strings.Contains(strings.ToLower(h.Header().Get("Transfer-Encoding")), "chunked")
	if (h.ProtoMajor() == 1 && declared < 0 && !chunked) || declared == 0 {
		return nil, nil
	}

	limit, fromDeclared := declared, true
	if cfg.bodySizeLimit > 0 {
		switch {
		case declared < 0:
			limit, fromDeclared = cfg.bodySizeLimit, false
		case declared > cfg.bodySizeLimit:
			return nil, &PayloadTooLargeError{Declared: declared, Limit: cfg.bodySizeLimit}
		}
	}
	if limit < 0 {
		limit = 0
	}

	if h.Destroyed() {
		return newCancelledBody(), nil
	}

	return newBodyReader(src, limit, fromDeclared, cfg.logger), nil
}
