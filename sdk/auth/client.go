package auth

import (
	"context"
	"errors"

	"github.com/router-for-me/claude-oauth/internal/auth/claude"
	"github.com/router-for-me/claude-oauth/internal/config"
	"github.com/router-for-me/claude-oauth/internal/logging"
	"github.com/router-for-me/claude-oauth/internal/transport"
	"github.com/router-for-me/claude-oauth/internal/util"
	log "github.com/sirupsen/logrus"
)

const (
	opStartFlow = "start flow"
	opExchange  = "token exchange"
	opRefresh   = "token refresh"
	opAPIKey    = "api key creation"
)

// Client is the blocking OAuth client. Each network method returns once the provider
// round trip has completed or failed. A Client holds no per-flow state and is safe for
// concurrent use when its transport is.
type Client struct {
	engine *claude.ClaudeAuth
	rt     transport.RoundTripper
}

// NewClient builds a blocking client from cfg. A nil cfg uses the Anthropic defaults.
// cfg is copied; later changes to it do not affect the client.
func NewClient(cfg *config.OAuthConfig, opts ...Option) (*Client, error) {
	o := newClientOptions(opts)
	engine, err := claude.NewClaudeAuth(cfg, o.engineOptions()...)
	if err != nil {
		return nil, err
	}
	return &Client{engine: engine, rt: o.blocking()}, nil
}

// Config returns a copy of the client's OAuth configuration.
func (c *Client) Config() config.OAuthConfig {
	return c.engine.Config()
}

// StartFlow begins a new authorization flow. It performs no I/O.
func (c *Client) StartFlow(mode Mode) (*FlowState, error) {
	return startFlow(c.engine, mode)
}

// ExchangeCode trades the user's "code#state" value for tokens. The embedded state is
// checked against expectedState before anything is sent.
func (c *Client) ExchangeCode(ctx context.Context, rawResponse, expectedState, verifier string) (*TokenSet, error) {
	ctx, entry := opLogger(ctx, opExchange)
	entry.Debugf("exchanging authorization code %s", util.MaskAuthorizationResponse(rawResponse))
	tokens, err := c.engine.ExchangeCodeForTokens(ctx, c.rt, rawResponse, expectedState, verifier)
	logTokens(entry, tokens, err)
	return tokens, err
}

// RefreshToken obtains a new token set. When the provider does not rotate the refresh
// token the input one is carried into the result.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	ctx, entry := opLogger(ctx, opRefresh)
	entry.Debugf("refreshing token %s", util.HideAPIKey(refreshToken))
	tokens, err := c.engine.RefreshTokens(ctx, c.rt, refreshToken)
	logTokens(entry, tokens, err)
	return tokens, err
}

// CreateAPIKey mints a Console API key using a console-mode access token.
func (c *Client) CreateAPIKey(ctx context.Context, accessToken string) (string, error) {
	ctx, entry := opLogger(ctx, opAPIKey)
	entry.Debug("creating api key")
	key, err := c.engine.CreateAPIKey(ctx, c.rt, accessToken)
	if err != nil {
		logFailure(entry, err)
		return "", err
	}
	entry.Debugf("api key created %s", util.HideAPIKey(key))
	return key, nil
}

func startFlow(engine *claude.ClaudeAuth, mode Mode) (*FlowState, error) {
	flow, err := engine.StartFlow(mode)
	if err != nil {
		log.WithField("op", opStartFlow).Debugf("start flow failed: %v", err)
		return nil, err
	}
	log.WithFields(log.Fields{
		"op":      opStartFlow,
		"flow_id": flow.FlowID,
		"mode":    flow.Mode.String(),
	}).Debug("authorization flow started")
	return flow, nil
}

// opLogger tags ctx with a request ID and returns an entry for the operation.
func opLogger(ctx context.Context, op string) (context.Context, *log.Entry) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logging.EnsureRequestID(ctx)
	return ctx, logging.FromContext(ctx).WithField("op", op)
}

func logTokens(entry *log.Entry, tokens *TokenSet, err error) {
	if err != nil {
		logFailure(entry, err)
		return
	}
	entry.Debugf("received token %s expiring at %s", util.HideAPIKey(tokens.AccessToken), tokens.ExpiresAt.Format("2006-01-02 15:04:05"))
}

func logFailure(entry *log.Entry, err error) {
	var providerErr *claude.ProviderError
	if errors.As(err, &providerErr) {
		entry = entry.WithField("status", providerErr.StatusCode)
	}
	entry.WithField("error", err.Error()).Debug("operation failed")
}
