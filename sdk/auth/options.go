package auth

import (
	"net/http"
	"time"

	"github.com/router-for-me/claude-oauth/internal/auth/claude"
	"github.com/router-for-me/claude-oauth/internal/config"
	"github.com/router-for-me/claude-oauth/internal/transport"
)

type clientOptions struct {
	rt          transport.RoundTripper
	art         transport.AsyncRoundTripper
	httpClient  *http.Client
	sdkCfg      *config.SDKConfig
	now         func() time.Time
	maxInFlight int
}

// Option configures a Client or AsyncClient.
type Option func(*clientOptions)

// WithRoundTripper sets the blocking transport. It takes precedence over
// WithHTTPClient and WithSDKConfig.
func WithRoundTripper(rt RoundTripper) Option {
	return func(o *clientOptions) { o.rt = rt }
}

// WithAsyncRoundTripper sets the non-blocking transport. An AsyncClient prefers it
// over WithRoundTripper; a Client awaits it when no blocking transport is set.
func WithAsyncRoundTripper(art AsyncRoundTripper) Option {
	return func(o *clientOptions) { o.art = art }
}

// WithHTTPClient sends requests through client instead of the default Anthropic client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = client }
}

// WithSDKConfig configures the default HTTP client: proxy, TLS fingerprinting and timeout.
func WithSDKConfig(cfg *config.SDKConfig) Option {
	return func(o *clientOptions) { o.sdkCfg = cfg }
}

// WithClock replaces time.Now for token issuance timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *clientOptions) { o.now = now }
}

// WithMaxInFlight caps the number of concurrent provider calls an AsyncClient runs.
// Zero or less means unlimited. A Client ignores it.
func WithMaxInFlight(n int) Option {
	return func(o *clientOptions) { o.maxInFlight = n }
}

func newClientOptions(opts []Option) *clientOptions {
	o := &clientOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

func (o *clientOptions) engineOptions() []claude.Option {
	if o.now == nil {
		return nil
	}
	return []claude.Option{claude.WithClock(o.now)}
}

func (o *clientOptions) httpTransport() transport.RoundTripper {
	client := o.httpClient
	if client == nil {
		client = claude.NewAnthropicHTTPClient(o.sdkCfg)
	}
	return transport.NewHTTPTransport(client)
}

// blocking resolves the transport for a Client.
func (o *clientOptions) blocking() transport.RoundTripper {
	switch {
	case o.rt != nil:
		return o.rt
	case o.art != nil:
		return transport.Awaiting(o.art)
	default:
		return o.httpTransport()
	}
}

// async resolves the transport for an AsyncClient.
func (o *clientOptions) async() transport.AsyncRoundTripper {
	switch {
	case o.art != nil:
		return o.art
	case o.rt != nil:
		return transport.Async(o.rt)
	default:
		return transport.Async(o.httpTransport())
	}
}
