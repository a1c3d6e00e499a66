package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/router-for-me/claude-oauth/internal/config"
	"github.com/router-for-me/claude-oauth/internal/transport"
	"github.com/tidwall/sjson"
)

const (
	opExchange = "token exchange"
	opRefresh  = "token refresh"
	opAPIKey   = "api key creation"
)

// field is one request body entry; order is preserved for JSON bodies.
type field struct {
	key   string
	value string
}

// ClaudeAuth is the OAuth flow engine for Anthropic.
// It owns no per-flow state: every flow's state and verifier travel with the caller,
// so one ClaudeAuth may serve any number of concurrent flows. The configuration is
// copied at construction and never changes afterwards.
type ClaudeAuth struct {
	cfg config.OAuthConfig
	now func() time.Time
}

// Option customizes a ClaudeAuth.
type Option func(*ClaudeAuth)

// WithClock replaces time.Now, which timestamps token issuance.
func WithClock(now func() time.Time) Option {
	return func(o *ClaudeAuth) {
		if now != nil {
			o.now = now
		}
	}
}

// NewClaudeAuth creates a new Anthropic authentication engine.
//
// Parameters:
//   - cfg: The OAuth client configuration; nil uses the defaults
//
// Returns:
//   - *ClaudeAuth: A new engine holding a private copy of cfg
//   - error: ErrInvalidConfig if cfg fails validation
func NewClaudeAuth(cfg *config.OAuthConfig, opts ...Option) (*ClaudeAuth, error) {
	if cfg == nil {
		cfg = &config.OAuthConfig{}
	}
	normalized, err := cfg.Normalized()
	if err != nil {
		return nil, NewAuthenticationError(ErrInvalidConfig, err)
	}
	o := &ClaudeAuth{cfg: normalized, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Config returns a copy of the engine's configuration.
func (o *ClaudeAuth) Config() config.OAuthConfig {
	return o.cfg
}

// StartFlow begins an independent flow with fresh PKCE material and state.
// It performs no I/O.
func (o *ClaudeAuth) StartFlow(mode Mode) (*FlowState, error) {
	if !mode.Valid() {
		return nil, NewAuthenticationError(ErrInvalidConfig, fmt.Errorf("unknown oauth mode %s", mode))
	}
	pkceCodes, err := GeneratePKCECodes()
	if err != nil {
		return nil, err
	}
	state, err := GenerateState()
	if err != nil {
		return nil, err
	}
	authURL, err := o.GenerateAuthURL(mode, state, pkceCodes)
	if err != nil {
		return nil, err
	}
	return &FlowState{
		FlowID:           uuid.NewString(),
		AuthorizationURL: authURL,
		State:            state,
		Verifier:         pkceCodes.CodeVerifier,
		Mode:             mode,
	}, nil
}

// GenerateAuthURL creates the OAuth authorization URL with PKCE.
//
// Parameters:
//   - mode: The authorization surface
//   - state: A random state parameter for CSRF protection
//   - pkceCodes: The PKCE codes for secure code exchange
//
// Returns:
//   - string: The complete authorization URL
//   - error: An error if PKCE codes are missing or URL generation fails
func (o *ClaudeAuth) GenerateAuthURL(mode Mode, state string, pkceCodes *PKCECodes) (string, error) {
	if pkceCodes == nil {
		return "", NewAuthenticationError(ErrInvalidArgument, fmt.Errorf("PKCE codes are required"))
	}
	return BuildAuthURL(mode, pkceCodes.CodeChallenge, state, &o.cfg)
}

// PrepareExchange validates an authorization response against its flow and returns the
// token request to send. State is verified here, so a mismatch never reaches the network.
func (o *ClaudeAuth) PrepareExchange(rawResponse, expectedState, verifier string) (*transport.Request, error) {
	parsed, err := ParseAuthorizationResponse(rawResponse)
	if err != nil {
		return nil, err
	}
	state, err := parsed.VerifyState(expectedState, o.cfg.AllowBareCode)
	if err != nil {
		return nil, err
	}
	if err = ValidateVerifier(verifier); err != nil {
		return nil, err
	}

	return o.tokenRequest([]field{
		{"code", parsed.Code},
		{"state", state},
		{"grant_type", "authorization_code"},
		{"client_id", o.cfg.ClientID},
		{"redirect_uri", o.cfg.ResolvedRedirectURI()},
		{"code_verifier", verifier},
	})
}

// PrepareRefresh returns the token request for a refresh.
func (o *ClaudeAuth) PrepareRefresh(refreshToken string) (*transport.Request, error) {
	if refreshToken == "" {
		return nil, NewAuthenticationError(ErrInvalidArgument, fmt.Errorf("refresh token is required"))
	}
	return o.tokenRequest([]field{
		{"grant_type", "refresh_token"},
		{"refresh_token", refreshToken},
		{"client_id", o.cfg.ClientID},
	})
}

// PrepareCreateAPIKey returns the API key creation request for a bearer token.
func (o *ClaudeAuth) PrepareCreateAPIKey(accessToken string) (*transport.Request, error) {
	if accessToken == "" {
		return nil, NewAuthenticationError(ErrInvalidArgument, fmt.Errorf("access token is required"))
	}
	req := &transport.Request{
		Method: http.MethodPost,
		URL:    o.cfg.Endpoints.APIKey,
		Header: http.Header{
			"Authorization": {"Bearer " + accessToken},
			"Accept":        {"application/json"},
		},
	}
	if o.cfg.RequestEncoding == config.EncodingJSON {
		req.ContentType = "application/json"
		req.Body = []byte("{}")
	}
	return req, nil
}

// ExchangeCodeForTokens exchanges authorization code for access tokens.
// This method implements the OAuth2 token exchange flow using PKCE for security.
//
// Parameters:
//   - ctx: The context for the request
//   - rt: The transport used for the round trip
//   - rawResponse: The "code#state" value, or a bare code
//   - expectedState: The state of the flow that produced the code
//   - verifier: The PKCE verifier of that flow
//
// Returns:
//   - *TokenSet: A new token set
//   - error: An error if validation or token exchange fails
func (o *ClaudeAuth) ExchangeCodeForTokens(ctx context.Context, rt transport.RoundTripper, rawResponse, expectedState, verifier string) (*TokenSet, error) {
	req, err := o.PrepareExchange(rawResponse, expectedState, verifier)
	if err != nil {
		return nil, err
	}
	issuedAt := o.now()
	resp, err := o.roundTrip(ctx, rt, opExchange, req)
	if err != nil {
		return nil, err
	}
	return o.ParseTokenResponse(opExchange, resp, issuedAt, "")
}

// RefreshTokens exchanges a refresh token for a new token set.
// The caller's existing TokenSet is not touched; store the returned one instead.
//
// Parameters:
//   - ctx: The context for the request
//   - rt: The transport used for the round trip
//   - refreshToken: The refresh token to use for getting new access token
//
// Returns:
//   - *TokenSet: The new token set
//   - error: An error if token refresh fails
func (o *ClaudeAuth) RefreshTokens(ctx context.Context, rt transport.RoundTripper, refreshToken string) (*TokenSet, error) {
	req, err := o.PrepareRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	issuedAt := o.now()
	resp, err := o.roundTrip(ctx, rt, opRefresh, req)
	if err != nil {
		return nil, err
	}
	return o.ParseTokenResponse(opRefresh, resp, issuedAt, refreshToken)
}

// CreateAPIKey mints an API key with a Console-mode access token.
// A 401 from the provider matches ErrUnauthorized; nothing is retried here.
func (o *ClaudeAuth) CreateAPIKey(ctx context.Context, rt transport.RoundTripper, accessToken string) (string, error) {
	req, err := o.PrepareCreateAPIKey(accessToken)
	if err != nil {
		return "", err
	}
	resp, err := o.roundTrip(ctx, rt, opAPIKey, req)
	if err != nil {
		return "", err
	}
	return ParseAPIKeyResponse(resp)
}

// ParseTokenResponse turns a successful token endpoint reply into a TokenSet.
// fallbackRefresh is carried over when the reply has no refresh_token.
func (o *ClaudeAuth) ParseTokenResponse(op string, resp *transport.Response, issuedAt time.Time, fallbackRefresh string) (*TokenSet, error) {
	if resp == nil {
		return nil, NewAuthenticationError(ErrInvalidProviderResponse, fmt.Errorf("no token response"))
	}
	if !resp.IsSuccess() {
		return nil, newProviderError(op, resp.StatusCode, resp.Body)
	}
	var tokenResp tokenResponse
	if err := json.Unmarshal(resp.Body, &tokenResp); err != nil {
		return nil, NewAuthenticationError(ErrInvalidProviderResponse, fmt.Errorf("failed to parse token response: %w", err))
	}
	tokens, err := newTokenSet(&tokenResp, issuedAt, fallbackRefresh)
	if err != nil {
		return nil, NewAuthenticationError(ErrInvalidProviderResponse, fmt.Errorf("invalid token response: %w", err))
	}
	return tokens, nil
}

// ParseAPIKeyResponse extracts the created key from a successful reply.
func ParseAPIKeyResponse(resp *transport.Response) (string, error) {
	if resp == nil {
		return "", NewAuthenticationError(ErrInvalidProviderResponse, fmt.Errorf("no api key response"))
	}
	if !resp.IsSuccess() {
		return "", newProviderError(opAPIKey, resp.StatusCode, resp.Body)
	}
	var keyResp apiKeyResponse
	if err := json.Unmarshal(resp.Body, &keyResp); err != nil {
		return "", NewAuthenticationError(ErrInvalidProviderResponse, fmt.Errorf("failed to parse api key response: %w", err))
	}
	if keyResp.RawKey == "" {
		return "", NewAuthenticationError(ErrInvalidProviderResponse, fmt.Errorf("received empty API key from server"))
	}
	return keyResp.RawKey, nil
}

func (o *ClaudeAuth) roundTrip(ctx context.Context, rt transport.RoundTripper, op string, req *transport.Request) (*transport.Response, error) {
	if rt == nil {
		return nil, NewAuthenticationError(ErrInvalidConfig, fmt.Errorf("transport is required"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	resp, err := rt.RoundTrip(ctx, req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if resp == nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("transport returned no response")}
	}
	if !resp.IsSuccess() {
		return nil, newProviderError(op, resp.StatusCode, resp.Body)
	}
	return resp, nil
}

// tokenRequest encodes fields for the token endpoint using the configured encoding.
func (o *ClaudeAuth) tokenRequest(fields []field) (*transport.Request, error) {
	req := &transport.Request{
		Method: http.MethodPost,
		URL:    o.cfg.Endpoints.Token,
		Header: http.Header{"Accept": {"application/json"}},
	}
	switch o.cfg.RequestEncoding {
	case config.EncodingJSON:
		body := []byte("{}")
		for _, f := range fields {
			var err error
			if body, err = sjson.SetBytes(body, f.key, f.value); err != nil {
				return nil, fmt.Errorf("failed to marshal request body: %w", err)
			}
		}
		req.ContentType = "application/json"
		req.Body = body
	default:
		values := url.Values{}
		for _, f := range fields {
			values.Set(f.key, f.value)
		}
		req.ContentType = "application/x-www-form-urlencoded"
		req.Body = []byte(values.Encode())
	}
	return req, nil
}
