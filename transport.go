package bridge

// RequestHandle is the transport layer's view of one inbound request.
// The bridge only reads it; the transport owns its lifecycle.
type RequestHandle interface {
	// Method returns the HTTP method.
	Method() string

	// ProtoMajor returns the major protocol version (1 for HTTP/1.x).
	ProtoMajor() int

	// Header returns the request headers.
	Header() Header

	// Path returns the path (plus query string) as the transport delivered
	// it. When the request was dispatched through a sub-router mount, this
	// is the relative path with the mount prefix stripped.
	Path() string

	// MountPath reports sub-router mount metadata: the prefix the request
	// was mounted under and the original path before rewriting. ok is false
	// when no rewriting occurred.
	MountPath() (prefix, original string, ok bool)

	// Body returns the raw push-style byte source, or nil when the
	// transport has none. Sources start paused.
	Body() BodySource

	// ParsedBody returns a body an upstream collaborator already buffered
	// and parsed, if any.
	ParsedBody() (BodyValue, bool)

	// Destroyed reports whether the transport has torn the request down.
	Destroyed() bool

	// ReadableEnded reports whether the raw byte source has already been
	// fully consumed.
	ReadableEnded() bool
}

// BodySource is a push-style byte producer. It announces data, completion,
// and errors through callbacks and is flow-controlled with Pause and Resume.
// A source delivers no data until the first Resume.
type BodySource interface {
	// OnData registers the chunk callback. The source may reuse the slice
	// after the callback returns.
	OnData(fn func(p []byte))

	// OnEnd registers the completion callback.
	OnEnd(fn func())

	// OnError registers the failure callback.
	OnError(fn func(err error))

	// Pause stops data callbacks until Resume.
	Pause()

	// Resume restarts data callbacks.
	Resume()

	// Destroy tears the source down with the given reason. No callbacks
	// fire afterward.
	Destroy(reason error)
}

// ResponseHandle is the transport layer's outbound write channel.
// The bridge writes to it and terminates it exactly once.
type ResponseHandle interface {
	// SetHeader appends a header entry. It returns an error when the
	// transport rejects the value.
	SetHeader(key, value string) error

	// DelHeader removes all entries for a key.
	DelHeader(key string)

	// HeaderKeys returns the keys of all headers set so far.
	HeaderKeys() []string

	// WriteHead commits the status line.
	WriteHead(status int)

	// Write pushes a chunk. accepted is false when the channel is saturated
	// and the caller should wait for a drain notification before writing
	// more.
	Write(p []byte) (accepted bool, err error)

	// End terminates the channel. The channel accepts no writes afterward.
	End() error

	// Destroy forcibly tears the channel down.
	Destroy(reason error)

	// Destroyed reports whether the channel has been torn down.
	Destroyed() bool

	// OnClose registers a callback for the channel closing (e.g. the client
	// disconnecting) before End.
	OnClose(fn func())

	// OnError registers a callback for channel failure.
	OnError(fn func(err error))

	// OnDrain registers a callback fired when a saturated channel regains
	// capacity.
	OnDrain(fn func())
}
