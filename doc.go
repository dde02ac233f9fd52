// Package bridge adapts a legacy callback-driven request/response transport
// to a pull-based stream model, in both directions.
//
// The inbound side wraps a transport request handle into a [Request] whose
// body is a lazily-pulled [BodyReader]:
//
//	req, err := bridge.NewRequest(handle, bridge.WithBase("https://example.com"))
//	for {
//	    chunk, err := req.Body.Next(ctx)
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    // ...
//	}
//
// The outbound side drives a [Response] through a push-based response
// handle, honoring the handle's write-acceptance signal and terminating it
// exactly once on every exit path:
//
//	err := bridge.Send(ctx, handle, &bridge.Response{
//	    Status: http.StatusOK,
//	    Header: headers,
//	    Body:   bridge.NewReaderStream(file),
//	})
//
// The transport boundary is expressed by the [RequestHandle], [BodySource],
// and [ResponseHandle] interfaces. A net/http-backed implementation is
// provided; other event-driven transports implement the same interfaces.
//
// Backpressure flows through both adapters: the inbound bridge pauses the
// push source while no pull is outstanding, and the outbound bridge suspends
// its write loop whenever the sink reports a blocked write, resuming on the
// sink's drain notification.
package bridge
