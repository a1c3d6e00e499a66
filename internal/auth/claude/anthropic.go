package claude

import (
	"fmt"
	"strings"
)

// Mode selects which Anthropic authorization surface a flow targets.
type Mode int

const (
	// ModeSubscription authorizes a Claude Pro/Max subscription on claude.ai.
	ModeSubscription Mode = iota
	// ModeAPIKeyCreation authorizes the Console so an API key can be minted.
	ModeAPIKeyCreation
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeSubscription:
		return "subscription"
	case ModeAPIKeyCreation:
		return "console"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool {
	return m == ModeSubscription || m == ModeAPIKeyCreation
}

// ParseMode accepts the names used in config files and CLI flags.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "subscription", "max", "pro", "claude":
		return ModeSubscription, nil
	case "console", "api-key", "apikey", "api_key_creation":
		return ModeAPIKeyCreation, nil
	default:
		return 0, NewAuthenticationError(ErrInvalidConfig, fmt.Errorf("unknown oauth mode %q", s))
	}
}

// PKCECodes holds PKCE verification codes for OAuth2 PKCE flow
type PKCECodes struct {
	// CodeVerifier is the cryptographically random string used to correlate
	// the authorization request to the token request
	CodeVerifier string `json:"code_verifier"`
	// CodeChallenge is the SHA256 hash of the code verifier, base64url-encoded
	CodeChallenge string `json:"code_challenge"`
}

// FlowState is everything a caller must keep between StartFlow and the code exchange.
// Nothing about a flow is retained by the library.
type FlowState struct {
	// FlowID correlates log lines and concurrent flows on the caller's side.
	FlowID string `json:"flow_id"`
	// AuthorizationURL is the URL the user opens to authorize.
	AuthorizationURL string `json:"authorization_url"`
	// State is the anti-CSRF token echoed back by the provider.
	State string `json:"state"`
	// Verifier is the PKCE secret sent with the code exchange.
	Verifier string `json:"verifier"`
	// Mode is the authorization surface the flow targets.
	Mode Mode `json:"mode"`
}

// AuthorizationResponse is the parsed "code#state" value returned by the provider.
type AuthorizationResponse struct {
	// Code is the authorization code, verbatim.
	Code string
	// State is the embedded state, verbatim. Meaningful only when HasState is true.
	State string
	// HasState reports whether the raw value carried a "#state" segment.
	HasState bool
}

// Account holds the identity attached to a token response, when the provider sends it.
type Account struct {
	UUID             string `json:"uuid,omitempty"`
	EmailAddress     string `json:"email_address,omitempty"`
	OrganizationUUID string `json:"organization_uuid,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
}

// tokenResponse represents the response structure from Anthropic's OAuth token endpoint.
// It contains access token, refresh token, and associated user/organization information.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    *int64 `json:"expires_in"`
	Scope        string `json:"scope"`
	Organization struct {
		UUID string `json:"uuid"`
		Name string `json:"name"`
	} `json:"organization"`
	Account struct {
		UUID         string `json:"uuid"`
		EmailAddress string `json:"email_address"`
	} `json:"account"`
}

// apiKeyResponse is the body returned by the API key creation endpoint.
type apiKeyResponse struct {
	RawKey string `json:"raw_key"`
}
