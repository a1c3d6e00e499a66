package claude

import (
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// DefaultRefreshMargin is the lead time callers typically use with NeedsRefresh.
const DefaultRefreshMargin = 5 * time.Minute

// defaultExpiresIn applies when the provider omits expires_in.
const defaultExpiresIn = 3600

// maxTokenLifetime bounds a plausible expires_at.
const maxTokenLifetime = 365 * 24 * time.Hour

// TokenSet holds the credentials issued by a code exchange or refresh.
// It is a value: a refresh yields a new TokenSet and leaves the old one untouched.
// Persisting it is the caller's job; the JSON tags exist for that purpose.
type TokenSet struct {
	// AccessToken is the OAuth2 access token used for authenticating API requests.
	AccessToken string `json:"access_token"`
	// RefreshToken is used to obtain new access tokens when the current one expires.
	RefreshToken string `json:"refresh_token"`
	// ExpiresAt is when the access token stops being valid.
	ExpiresAt time.Time `json:"expires_at"`
	// TokenType is usually "Bearer".
	TokenType string `json:"token_type,omitempty"`
	// Scope is the granted scope, space separated.
	Scope string `json:"scope,omitempty"`
	// Account is the identity reported with the token, if any.
	Account Account `json:"account"`
}

// IsExpired reports whether the access token has expired. There is no margin.
func (t TokenSet) IsExpired() bool {
	return t.IsExpiredAt(time.Now())
}

// IsExpiredAt reports whether the access token is expired at now.
func (t TokenSet) IsExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ExpiresIn returns the time left before expiry, or zero once expired.
func (t TokenSet) ExpiresIn() time.Duration {
	return t.ExpiresInAt(time.Now())
}

// ExpiresInAt is ExpiresIn evaluated at now.
func (t TokenSet) ExpiresInAt(now time.Time) time.Duration {
	if d := t.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// NeedsRefresh reports whether the token expires within margin.
func (t TokenSet) NeedsRefresh(margin time.Duration) bool {
	return t.ExpiresIn() <= margin
}

// Validate checks that the token fields are non-empty and plausible.
func (t TokenSet) Validate() error {
	return t.ValidateAt(time.Now())
}

// ValidateAt is Validate evaluated at now.
func (t TokenSet) ValidateAt(now time.Time) error {
	if t.AccessToken == "" {
		return fmt.Errorf("access_token is empty")
	}
	if t.RefreshToken == "" {
		return fmt.Errorf("refresh_token is empty")
	}
	if t.ExpiresAt.IsZero() {
		return fmt.Errorf("expires_at is invalid")
	}
	if t.ExpiresAt.After(now.Add(maxTokenLifetime)) {
		return fmt.Errorf("expires_at is too far in the future")
	}
	return nil
}

// OAuth2Token converts the set for use with golang.org/x/oauth2 clients.
func (t TokenSet) OAuth2Token() *oauth2.Token {
	tokenType := t.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    tokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}
}

// newTokenSet builds a TokenSet from a decoded response issued at issuedAt.
// fallbackRefresh is kept when the provider omits a new refresh token.
func newTokenSet(resp *tokenResponse, issuedAt time.Time, fallbackRefresh string) (*TokenSet, error) {
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("access_token is missing")
	}
	expiresIn := int64(defaultExpiresIn)
	if resp.ExpiresIn != nil {
		expiresIn = *resp.ExpiresIn
	}
	if expiresIn < 0 {
		return nil, fmt.Errorf("expires_in is negative")
	}
	if expiresIn > int64(maxTokenLifetime/time.Second) {
		return nil, fmt.Errorf("expires_in is too large")
	}
	refresh := resp.RefreshToken
	if refresh == "" {
		refresh = fallbackRefresh
	}

	tokens := &TokenSet{
		AccessToken:  resp.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    issuedAt.Add(time.Duration(expiresIn) * time.Second).Round(0),
		TokenType:    resp.TokenType,
		Scope:        resp.Scope,
		Account: Account{
			UUID:             resp.Account.UUID,
			EmailAddress:     resp.Account.EmailAddress,
			OrganizationUUID: resp.Organization.UUID,
			OrganizationName: resp.Organization.Name,
		},
	}
	if err := tokens.ValidateAt(issuedAt); err != nil {
		return nil, err
	}
	return tokens, nil
}
