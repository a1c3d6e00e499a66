package auth

import (
	"context"

	"github.com/router-for-me/claude-oauth/internal/auth/claude"
	"github.com/router-for-me/claude-oauth/internal/config"
	"github.com/router-for-me/claude-oauth/internal/transport"
	"github.com/router-for-me/claude-oauth/internal/util"
	"golang.org/x/sync/semaphore"
)

// AsyncClient is the non-blocking OAuth client. Its network methods return a Future at
// once and run the provider call on a separate goroutine, waiting on the configured
// AsyncRoundTripper. StartFlow does no I/O and stays synchronous.
type AsyncClient struct {
	engine *claude.ClaudeAuth
	rt     transport.RoundTripper
	sem    *semaphore.Weighted
}

// NewAsyncClient builds a non-blocking client from cfg. A nil cfg uses the defaults.
func NewAsyncClient(cfg *config.OAuthConfig, opts ...Option) (*AsyncClient, error) {
	o := newClientOptions(opts)
	engine, err := claude.NewClaudeAuth(cfg, o.engineOptions()...)
	if err != nil {
		return nil, err
	}
	c := &AsyncClient{engine: engine, rt: transport.Awaiting(o.async())}
	if o.maxInFlight > 0 {
		c.sem = semaphore.NewWeighted(int64(o.maxInFlight))
	}
	return c, nil
}

// Config returns a copy of the client's OAuth configuration.
func (c *AsyncClient) Config() config.OAuthConfig {
	return c.engine.Config()
}

// StartFlow begins a new authorization flow. It performs no I/O.
func (c *AsyncClient) StartFlow(mode Mode) (*FlowState, error) {
	return startFlow(c.engine, mode)
}

// ExchangeCode is the non-blocking form of Client.ExchangeCode.
func (c *AsyncClient) ExchangeCode(ctx context.Context, rawResponse, expectedState, verifier string) *Future[*TokenSet] {
	ctx, entry := opLogger(ctx, opExchange)
	entry.Debugf("submitting code exchange %s", util.MaskAuthorizationResponse(rawResponse))
	return submit(ctx, c, opExchange, func(ctx context.Context) (*TokenSet, error) {
		tokens, err := c.engine.ExchangeCodeForTokens(ctx, c.rt, rawResponse, expectedState, verifier)
		logTokens(entry, tokens, err)
		return tokens, err
	})
}

// RefreshToken is the non-blocking form of Client.RefreshToken.
func (c *AsyncClient) RefreshToken(ctx context.Context, refreshToken string) *Future[*TokenSet] {
	ctx, entry := opLogger(ctx, opRefresh)
	entry.Debugf("submitting refresh %s", util.HideAPIKey(refreshToken))
	return submit(ctx, c, opRefresh, func(ctx context.Context) (*TokenSet, error) {
		tokens, err := c.engine.RefreshTokens(ctx, c.rt, refreshToken)
		logTokens(entry, tokens, err)
		return tokens, err
	})
}

// CreateAPIKey is the non-blocking form of Client.CreateAPIKey.
func (c *AsyncClient) CreateAPIKey(ctx context.Context, accessToken string) *Future[string] {
	ctx, entry := opLogger(ctx, opAPIKey)
	entry.Debug("submitting api key creation")
	return submit(ctx, c, opAPIKey, func(ctx context.Context) (string, error) {
		key, err := c.engine.CreateAPIKey(ctx, c.rt, accessToken)
		if err != nil {
			logFailure(entry, err)
			return "", err
		}
		entry.Debugf("api key created %s", util.HideAPIKey(key))
		return key, nil
	})
}

// submit starts fn on its own goroutine, holding an in-flight slot while it runs.
// A context that ends while waiting for a slot fails the call as a transport error.
func submit[T any](ctx context.Context, c *AsyncClient, op string, fn func(context.Context) (T, error)) *Future[T] {
	return transport.Go(ctx, func(ctx context.Context) (T, error) {
		if c.sem != nil {
			if err := c.sem.Acquire(ctx, 1); err != nil {
				var zero T
				return zero, &claude.TransportError{Op: op, Err: err}
			}
			defer c.sem.Release(1)
		}
		return fn(ctx)
	})
}

// Blocking returns a FlowClient that awaits each exchange, for use with Login.
func (c *AsyncClient) Blocking() FlowClient {
	return awaitingFlowClient{c: c}
}

type awaitingFlowClient struct {
	c *AsyncClient
}

func (a awaitingFlowClient) StartFlow(mode Mode) (*FlowState, error) {
	return a.c.StartFlow(mode)
}

func (a awaitingFlowClient) ExchangeCode(ctx context.Context, rawResponse, expectedState, verifier string) (*TokenSet, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return a.c.ExchangeCode(ctx, rawResponse, expectedState, verifier).Await(ctx)
}
