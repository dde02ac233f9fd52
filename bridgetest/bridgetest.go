// Package bridgetest provides scriptable fake transport handles for testing
// the bridge adapters.
package bridgetest

import (
	"bytes"
	"sync"

	"github.com/bjaus/bridge"
)

// RequestHandle is a configurable fake transport request.
type RequestHandle struct {
	MethodValue   string
	Proto         int
	Headers       bridge.Header
	PathValue     string
	MountPrefix   string
	OriginalPath  string
	Mounted       bool
	Src           *Source
	Parsed        *bridge.BodyValue
	DestroyedFlag bool
	Ended         bool
}

// NewRequestHandle returns a fake HTTP/1.1 request with the given method
// and path.
func NewRequestHandle(method, path string) *RequestHandle {
	return &RequestHandle{
		MethodValue: method,
		Proto:       1,
		Headers:     bridge.Header{},
		PathValue:   path,
	}
}

// Method returns the configured method.
func (h *RequestHandle) Method() string { return h.MethodValue }

// ProtoMajor returns the configured protocol major version.
func (h *RequestHandle) ProtoMajor() int { return h.Proto }

// Header returns the configured headers.
func (h *RequestHandle) Header() bridge.Header { return h.Headers }

// Path returns the configured relative path.
func (h *RequestHandle) Path() string { return h.PathValue }

// MountPath returns the configured mount metadata.
func (h *RequestHandle) MountPath() (string, string, bool) {
	return h.MountPrefix, h.OriginalPath, h.Mounted
}

// Body returns the configured push source, or nil.
func (h *RequestHandle) Body() bridge.BodySource {
	if h.Src == nil {
		return nil
	}
	return h.Src
}

// ParsedBody returns the configured pre-parsed body, if any.
func (h *RequestHandle) ParsedBody() (bridge.BodyValue, bool) {
	if h.Parsed == nil {
		return bridge.BodyValue{}, false
	}
	return *h.Parsed, true
}

// Destroyed returns the configured destroyed flag.
func (h *RequestHandle) Destroyed() bool { return h.DestroyedFlag }

// ReadableEnded returns the configured readable-ended flag.
func (h *RequestHandle) ReadableEnded() bool { return h.Ended }

// Source is a scriptable push body source that records flow-control calls.
type Source struct {
	mu     sync.Mutex
	onData func([]byte)
	onEnd  func()
	onErr  func(error)

	paused    bool
	resumes   int
	pauses    int
	destroyed bool
	reason    error
}

// NewSource returns a Source that starts paused.
func NewSource() *Source {
	return &Source{paused: true}
}

// OnData registers the chunk callback.
func (s *Source) OnData(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onData = fn
}

// OnEnd registers the completion callback.
func (s *Source) OnEnd(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnd = fn
}

// OnError registers the failure callback.
func (s *Source) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onErr = fn
}

// Pause records a pause.
func (s *Source) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	s.pauses++
}

// Resume records a resume.
func (s *Source) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	s.resumes++
}

// Destroy records the teardown reason.
func (s *Source) Destroy(reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.reason = reason
}

// Push delivers a chunk through the data callback. Returns false when the
// source is destroyed or no callback is registered.
func (s *Source) Push(p []byte) bool {
	s.mu.Lock()
	fn := s.onData
	dead := s.destroyed
	s.mu.Unlock()
	if dead || fn == nil {
		return false
	}
	fn(p)
	return true
}

// Finish fires the completion callback.
func (s *Source) Finish() {
	s.mu.Lock()
	fn := s.onEnd
	dead := s.destroyed
	s.mu.Unlock()
	if !dead && fn != nil {
		fn()
	}
}

// Fail fires the failure callback.
func (s *Source) Fail(err error) {
	s.mu.Lock()
	fn := s.onErr
	dead := s.destroyed
	s.mu.Unlock()
	if !dead && fn != nil {
		fn(err)
	}
}

// Paused reports the current flow-control state.
func (s *Source) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Resumes returns the number of Resume calls.
func (s *Source) Resumes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumes
}

// Destroyed reports whether Destroy was called, and with what reason.
func (s *Source) Destroyed() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed, s.reason
}

// HeaderWrite records one SetHeader call.
type HeaderWrite struct {
	Key   string
	Value string
}

// ResponseHandle is a scriptable fake transport response channel.
type ResponseHandle struct {
	mu sync.Mutex

	headers   []HeaderWrite
	status    int
	body      bytes.Buffer
	writes    int
	ends      int
	destroys  []error
	destroyed bool

	onClose []func()
	onError []func(error)
	onDrain []func()

	// RejectHeader, when set, is consulted for each SetHeader call.
	RejectHeader func(key, value string) error

	// Accept, when set, scripts the flow-control result of each Write
	// call (1-indexed write count).
	Accept func(write int) bool
}

// NewResponseHandle returns an empty fake response channel.
func NewResponseHandle() *ResponseHandle {
	return &ResponseHandle{}
}

// SetHeader records a header write, consulting RejectHeader first.
func (h *ResponseHandle) SetHeader(key, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.RejectHeader != nil {
		if err := h.RejectHeader(key, value); err != nil {
			return err
		}
	}
	h.headers = append(h.headers, HeaderWrite{Key: key, Value: value})
	return nil
}

// DelHeader removes all recorded entries for key.
func (h *ResponseHandle) DelHeader(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.headers[:0]
	for _, hw := range h.headers {
		if hw.Key != key {
			kept = append(kept, hw)
		}
	}
	h.headers = kept
}

// HeaderKeys returns the keys of all recorded headers.
func (h *ResponseHandle) HeaderKeys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := map[string]bool{}
	var keys []string
	for _, hw := range h.headers {
		if !seen[hw.Key] {
			seen[hw.Key] = true
			keys = append(keys, hw.Key)
		}
	}
	return keys
}

// WriteHead records the status line.
func (h *ResponseHandle) WriteHead(status int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status == 0 {
		h.status = status
	}
}

// Write records a chunk. The result follows the Accept script; the default
// accepts everything.
func (h *ResponseHandle) Write(p []byte) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writes++
	h.body.Write(p)
	if h.Accept != nil {
		return h.Accept(h.writes), nil
	}
	return true, nil
}

// End records a termination.
func (h *ResponseHandle) End() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ends++
	return nil
}

// Destroy records a forced teardown.
func (h *ResponseHandle) Destroy(reason error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.destroyed = true
	h.destroys = append(h.destroys, reason)
}

// Destroyed reports whether Destroy was called.
func (h *ResponseHandle) Destroyed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.destroyed
}

// SetDestroyed marks the channel destroyed without recording a Destroy
// call, simulating a channel torn down before the adapter ran.
func (h *ResponseHandle) SetDestroyed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.destroyed = true
}

// OnClose registers a close callback.
func (h *ResponseHandle) OnClose(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onClose = append(h.onClose, fn)
}

// OnError registers an error callback.
func (h *ResponseHandle) OnError(fn func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onError = append(h.onError, fn)
}

// OnDrain registers a drain callback.
func (h *ResponseHandle) OnDrain(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDrain = append(h.onDrain, fn)
}

// FireClose invokes all registered close callbacks.
func (h *ResponseHandle) FireClose() {
	h.mu.Lock()
	fns := append([]func(){}, h.onClose...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// FireError invokes all registered error callbacks.
func (h *ResponseHandle) FireError(err error) {
	h.mu.Lock()
	fns := append([]func(error){}, h.onError...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

// FireDrain invokes all registered drain callbacks.
func (h *ResponseHandle) FireDrain() {
	h.mu.Lock()
	fns := append([]func(){}, h.onDrain...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Headers returns all recorded header writes in order.
func (h *ResponseHandle) Headers() []HeaderWrite {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HeaderWrite(nil), h.headers...)
}

// HeaderValues returns the recorded values for key, in write order.
func (h *ResponseHandle) HeaderValues(key string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var vals []string
	for _, hw := range h.headers {
		if hw.Key == key {
			vals = append(vals, hw.Value)
		}
	}
	return vals
}

// Status returns the recorded status code.
func (h *ResponseHandle) Status() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Body returns everything written so far.
func (h *ResponseHandle) Body() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.body.String()
}

// Writes returns the number of Write calls.
func (h *ResponseHandle) Writes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writes
}

// Ends returns the number of End calls.
func (h *ResponseHandle) Ends() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ends
}

// Destroys returns the reasons of all recorded Destroy calls.
func (h *ResponseHandle) Destroys() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.destroys...)
}
