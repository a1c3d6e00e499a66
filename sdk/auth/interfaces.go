package auth

import (
	"context"
	"io"
	"time"
)

// FlowClient is the part of a client the login flow needs. *Client implements it,
// and AsyncClient.Blocking adapts an *AsyncClient.
type FlowClient interface {
	StartFlow(mode Mode) (*FlowState, error)
	ExchangeCode(ctx context.Context, rawResponse, expectedState, verifier string) (*TokenSet, error)
}

// Opener shows the authorization URL to the user, usually by launching a browser.
// A failure is not fatal to the flow; the URL is printed instead.
type Opener interface {
	Open(url string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(url string) error

// Open calls f(url).
func (f OpenerFunc) Open(url string) error { return f(url) }

// CallbackListener receives the provider's redirect on this machine.
type CallbackListener interface {
	Start() error
	WaitForCallback(ctx context.Context) (*CallbackResult, error)
	Stop(ctx context.Context) error
}

// ListenerFactory builds a listener bound to one flow's expected state.
type ListenerFactory func(flow *FlowState) (CallbackListener, error)

// PromptFunc asks the user for input and returns what they typed.
type PromptFunc func(prompt string) (string, error)

// LoginOptions captures the knobs of an interactive login.
type LoginOptions struct {
	// NoBrowser prints the URL instead of opening it.
	NoBrowser bool
	// Opener launches the URL; nil leaves the user to open the printed URL.
	Opener Opener
	// OnAuthorizationURL is called with the URL before it is shown, e.g. to copy it.
	OnAuthorizationURL func(url string)
	// Listener, when set, waits for the redirect locally.
	Listener ListenerFactory
	// Prompt reads a pasted callback URL or "code#state" value.
	Prompt PromptFunc
	// ManualPromptDelay is how long to wait for the listener before prompting.
	ManualPromptDelay time.Duration
	// CallbackTimeout bounds the wait for the listener.
	CallbackTimeout time.Duration
	// Output receives user-facing messages; nil means stdout.
	Output io.Writer
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Flow   *FlowState
	Tokens *TokenSet
}
