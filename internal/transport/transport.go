// Package transport defines the capability the OAuth engine uses to reach the provider.
// A single request/response shape is served by two interfaces: RoundTripper, which blocks
// the calling goroutine until the round trip finishes, and AsyncRoundTripper, which
// returns a Future immediately. Adapters convert between the two so protocol code is
// written once against RoundTripper.
package transport

import (
	"context"
	"net/http"
)

// Request is a fully encoded HTTP request.
type Request struct {
	// Method is the HTTP method, POST for every provider call.
	Method string
	// URL is the absolute target URL.
	URL string
	// Header carries additional headers such as Authorization.
	Header http.Header
	// ContentType is sent as the Content-Type header when Body is non-empty.
	ContentType string
	// Body is the encoded request body.
	Body []byte
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	// Body is the decoded response body.
	Body []byte
}

// IsSuccess reports whether the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// RoundTripper performs one round trip and blocks until it completes or fails.
// A non-nil error means no response was obtained; provider rejections are
// reported through Response.StatusCode.
type RoundTripper interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
}

// RoundTripperFunc adapts a function to RoundTripper.
type RoundTripperFunc func(ctx context.Context, req *Request) (*Response, error)

// RoundTrip calls f(ctx, req).
func (f RoundTripperFunc) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// AsyncRoundTripper starts a round trip and returns without waiting for it.
type AsyncRoundTripper interface {
	Submit(ctx context.Context, req *Request) *Future[*Response]
}

// Async runs a blocking RoundTripper on its own goroutine per request.
func Async(rt RoundTripper) AsyncRoundTripper {
	return asyncAdapter{rt: rt}
}

type asyncAdapter struct {
	rt RoundTripper
}

func (a asyncAdapter) Submit(ctx context.Context, req *Request) *Future[*Response] {
	return Go(ctx, func(ctx context.Context) (*Response, error) {
		return a.rt.RoundTrip(ctx, req)
	})
}

// Awaiting turns an AsyncRoundTripper into a RoundTripper that suspends the calling
// goroutine on the returned Future. Cancelling ctx abandons the wait.
func Awaiting(art AsyncRoundTripper) RoundTripper {
	return RoundTripperFunc(func(ctx context.Context, req *Request) (*Response, error) {
		return art.Submit(ctx, req).Await(ctx)
	})
}
