package bridge

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// HTTPRequestHandle adapts *http.Request to the RequestHandle interface so
// the inbound bridge can run on the standard net/http server.
type HTTPRequestHandle struct {
	r      *http.Request
	header Header

	mu            sync.Mutex
	src           *httpBodySource
	parsed        *BodyValue
	mountPrefix   string
	mountOriginal string
	mounted       bool
}

// NewHTTPRequestHandle wraps an incoming net/http request.
func NewHTTPRequestHandle(r *http.Request) *HTTPRequestHandle {
	header := make(Header, len(r.Header)+2)
	for k, vv := range r.Header {
		header[k] = append([]string(nil), vv...)
	}
	// net/http hoists framing headers into struct fields; surface them back
	// so the body rules can see them.
	if r.ContentLength >= 0 && header.Get("Content-Length") == "" {
		header.Set("Content-Length", strconv.FormatInt(r.ContentLength, 10))
	}
	for _, te := range r.TransferEncoding {
		if strings.EqualFold(te, "chunked") {
			header.Set("Transfer-Encoding", "chunked")
		}
	}
	return &HTTPRequestHandle{r: r, header: header}
}

// SetMount records sub-router mount metadata for URL reconstruction, e.g.
// after http.StripPrefix rewrote the path.
func (h *HTTPRequestHandle) SetMount(prefix, original string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mountPrefix, h.mountOriginal, h.mounted = prefix, original, true
}

// SetParsedBody attaches a body that upstream middleware already buffered
// and parsed.
func (h *HTTPRequestHandle) SetParsedBody(v BodyValue) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.parsed = &v
}

// Method returns the HTTP method.
func (h *HTTPRequestHandle) Method() string { return h.r.Method }

// ProtoMajor returns the major protocol version.
func (h *HTTPRequestHandle) ProtoMajor() int { return h.r.ProtoMajor }

// Header returns the request headers.
func (h *HTTPRequestHandle) Header() Header { return h.header }

// Path returns the path and query as delivered by the transport.
func (h *HTTPRequestHandle) Path() string { return h.r.URL.RequestURI() }

// MountPath reports mount metadata recorded via SetMount.
func (h *HTTPRequestHandle) MountPath() (prefix, original string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mountPrefix, h.mountOriginal, h.mounted
}

// Body returns a push source pumping from the request body.
func (h *HTTPRequestHandle) Body() BodySource {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.r.Body == nil || h.r.Body == http.NoBody {
		return nil
	}
	if h.src == nil {
		h.src = newHTTPBodySource(h.r.Body)
	}
	return h.src
}

// ParsedBody returns the body attached via SetParsedBody, if any.
func (h *HTTPRequestHandle) ParsedBody() (BodyValue, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.parsed == nil {
		return BodyValue{}, false
	}
	return *h.parsed, true
}

// Destroyed reports whether the request's context has ended.
func (h *HTTPRequestHandle) Destroyed() bool { return h.r.Context().Err() != nil }

// ReadableEnded reports whether the body pump has fully consumed the
// request body.
func (h *HTTPRequestHandle) ReadableEnded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.src != nil && h.src.ended()
}

// httpBodySource pumps an io.ReadCloser into push-style callbacks with
// pause/resume flow control. The pump goroutine starts on the first Resume.
type httpBodySource struct {
	rc io.ReadCloser

	mu        sync.Mutex
	onData    func([]byte)
	onEnd     func()
	onErr     func(error)
	resume    chan struct{}
	paused    bool
	started   bool
	destroyed bool
	done      bool
}

func newHTTPBodySource(rc io.ReadCloser) *httpBodySource {
	return &httpBodySource{rc: rc, paused: true, resume: make(chan struct{}, 1)}
}

// OnData registers the chunk callback.
func (s *httpBodySource) OnData(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onData = fn
}

// OnEnd registers the completion callback.
func (s *httpBodySource) OnEnd(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnd = fn
}

// OnError registers the failure callback.
func (s *httpBodySource) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onErr = fn
}

// Pause stops the pump after the in-flight read.
func (s *httpBodySource) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume restarts the pump, starting it on first use.
func (s *httpBodySource) Resume() {
	s.mu.Lock()
	s.paused = false
	start := !s.started && !s.destroyed
	s.started = true
	s.mu.Unlock()

	if start {
		go s.pump()
	}
	select {
	case s.resume <- struct{}{}:
	default:
	}
}

// Destroy closes the underlying body and stops the pump.
func (s *httpBodySource) Destroy(error) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.mu.Unlock()

	//nolint:errcheck,gosec // best-effort release
	s.rc.Close()
	select {
	case s.resume <- struct{}{}:
	default:
	}
}

func (s *httpBodySource) ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *httpBodySource) pump() {
	buf := make([]byte, readChunkSize)
	for {
		s.mu.Lock()
		if s.destroyed {
			s.mu.Unlock()
			return
		}
		if s.paused {
			s.mu.Unlock()
			<-s.resume
			continue
		}
		onData, onEnd, onErr := s.onData, s.onEnd, s.onErr
		s.mu.Unlock()

		n, err := s.rc.Read(buf)
		if n > 0 && onData != nil {
			onData(buf[:n])
		}
		if err == nil {
			continue
		}

		s.mu.Lock()
		destroyed := s.destroyed
		s.done = true
		s.mu.Unlock()
		if destroyed {
			return
		}
		if errors.Is(err, io.EOF) {
			if onEnd != nil {
				onEnd()
			}
		} else if onErr != nil {
			onErr(err)
		}
		return
	}
}

// HTTPResponseHandle adapts http.ResponseWriter to the ResponseHandle
// interface. net/http applies backpressure inside Write itself, so writes
// always report accepted and the drain notification never fires.
type HTTPResponseHandle struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu          sync.Mutex
	wroteHeader bool
	ended       bool
	destroyed   bool
	closed      bool
	onClose     []func()
}

// NewHTTPResponseHandle wraps a net/http response writer. The request's
// context feeds the close notification when the client disconnects.
func NewHTTPResponseHandle(w http.ResponseWriter, r *http.Request) *HTTPResponseHandle {
	h := &HTTPResponseHandle{w: w, rc: http.NewResponseController(w)}

	ctx := r.Context()
	go func() {
		<-ctx.Done()
		h.mu.Lock()
		if h.ended || h.destroyed || h.closed {
			h.mu.Unlock()
			return
		}
		h.closed = true
		fns := append([]func(){}, h.onClose...)
		h.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	}()
	return h
}

// SetHeader appends a header entry, rejecting values net/http would
// silently drop at write time.
func (h *HTTPResponseHandle) SetHeader(key, value string) error {
	if key == "" || strings.ContainsAny(key, " \t\r\n:") {
		return fmt.Errorf("invalid header key %q", key)
	}
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("invalid value for header %q", key)
	}
	h.w.Header().Add(key, value)
	return nil
}

// DelHeader removes all entries for key.
func (h *HTTPResponseHandle) DelHeader(key string) { h.w.Header().Del(key) }

// HeaderKeys returns the keys of all headers set so far.
func (h *HTTPResponseHandle) HeaderKeys() []string {
	keys := make([]string, 0, len(h.w.Header()))
	for k := range h.w.Header() {
		keys = append(keys, k)
	}
	return keys
}

// WriteHead commits the status line.
func (h *HTTPResponseHandle) WriteHead(status int) {
	h.mu.Lock()
	if h.wroteHeader || h.destroyed {
		h.mu.Unlock()
		return
	}
	h.wroteHeader = true
	h.mu.Unlock()
	h.w.WriteHeader(status)
}

// Write pushes a chunk and flushes it. accepted is always true; net/http
// blocks inside Write when the connection is saturated.
func (h *HTTPResponseHandle) Write(p []byte) (bool, error) {
	h.mu.Lock()
	if h.destroyed || h.ended {
		h.mu.Unlock()
		return false, errors.New("response channel is closed")
	}
	h.mu.Unlock()

	if _, err := h.w.Write(p); err != nil {
		return false, err
	}
	//nolint:errcheck,gosec // flush is best-effort; not all writers support it
	h.rc.Flush()
	return true, nil
}

// End terminates the channel. The response itself completes when the
// handler returns.
func (h *HTTPResponseHandle) End() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ended = true
	return nil
}

// Destroy forcibly tears the channel down by expiring its write deadline.
func (h *HTTPResponseHandle) Destroy(error) {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	h.destroyed = true
	h.mu.Unlock()
	//nolint:errcheck,gosec // best-effort abort
	h.rc.SetWriteDeadline(time.Now())
}

// Destroyed reports whether Destroy was called.
func (h *HTTPResponseHandle) Destroyed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.destroyed
}

// OnClose registers a callback for client disconnection. Fires immediately
// if the client is already gone.
func (h *HTTPResponseHandle) OnClose(fn func()) {
	h.mu.Lock()
	closed := h.closed
	if !closed {
		h.onClose = append(h.onClose, fn)
	}
	h.mu.Unlock()
	if closed {
		fn()
	}
}

// OnError registers a callback for channel failure. net/http reports write
// failures synchronously from Write, so this never fires.
func (h *HTTPResponseHandle) OnError(func(error)) {}

// OnDrain registers a drain callback. net/http never signals drain; writes
// block instead of reporting blocked.
func (h *HTTPResponseHandle) OnDrain(func()) {}
