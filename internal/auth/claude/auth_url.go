package claude

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/router-for-me/claude-oauth/internal/config"
)

// BuildAuthURL creates the OAuth authorization URL with PKCE for the given mode.
// The base endpoint depends on the mode; every other query parameter depends only
// on the configuration, the challenge and the state.
//
// Parameters:
//   - mode: The authorization surface
//   - challenge: The S256 PKCE code challenge
//   - state: The anti-CSRF state for this flow
//   - cfg: The OAuth client configuration
//
// Returns:
//   - string: The complete authorization URL
//   - error: ErrInvalidConfig if the configuration or inputs cannot form a URL
func BuildAuthURL(mode Mode, challenge, state string, cfg *config.OAuthConfig) (string, error) {
	if cfg == nil {
		return "", NewAuthenticationError(ErrInvalidConfig, fmt.Errorf("configuration is required"))
	}
	if challenge == "" {
		return "", NewAuthenticationError(ErrInvalidConfig, fmt.Errorf("PKCE challenge is required"))
	}
	if state == "" {
		return "", NewAuthenticationError(ErrInvalidConfig, fmt.Errorf("state is required"))
	}

	var endpoint, scope string
	switch mode {
	case ModeSubscription:
		endpoint, scope = cfg.Endpoints.SubscriptionAuthorize, cfg.Scopes.Subscription
	case ModeAPIKeyCreation:
		endpoint, scope = cfg.Endpoints.ConsoleAuthorize, cfg.Scopes.Console
	default:
		return "", NewAuthenticationError(ErrInvalidConfig, fmt.Errorf("unknown oauth mode %s", mode))
	}

	base, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", NewAuthenticationError(ErrInvalidConfig, fmt.Errorf("invalid authorization endpoint %q", endpoint))
	}
	redirectURI := cfg.ResolvedRedirectURI()
	if redirect, errParse := url.Parse(redirectURI); errParse != nil || !redirect.IsAbs() || redirect.Host == "" {
		return "", NewAuthenticationError(ErrInvalidConfig, fmt.Errorf("invalid redirect uri %q", redirectURI))
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return "", NewAuthenticationError(ErrInvalidConfig, fmt.Errorf("client id is required"))
	}

	params := url.Values{
		"code":                  {"true"},
		"client_id":             {cfg.ClientID},
		"response_type":         {"code"},
		"redirect_uri":          {redirectURI},
		"scope":                 {scope},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
		"state":                 {state},
	}
	base.RawQuery = params.Encode()
	return base.String(), nil
}
