// Package claude provides OAuth2 authentication functionality for Anthropic's Claude API.
// It implements the Authorization Code flow with PKCE for the subscription and API key
// creation modes: PKCE and state generation, authorization URL construction, parsing
// of the "code#state" authorization response, token exchange, refresh and API key
// issuance. Network access goes through an injected transport; tokens are returned to
// the caller and never stored here.
package claude

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/oauth2"
)

const (
	// verifierBytes encodes to the 128 character maximum allowed by RFC 7636.
	verifierBytes = 96
	// stateBytes gives 256 bits of entropy, 43 base64url characters.
	stateBytes = 32

	minVerifierLength = 43
	maxVerifierLength = 128
)

// randReader is the secure random source. Tests swap it to exercise failures.
var randReader io.Reader = rand.Reader

// GeneratePKCECodes generates a PKCE code verifier and challenge pair
// following RFC 7636 for the OAuth 2.0 PKCE extension.
// This provides additional security for the OAuth flow by ensuring that
// only the client that initiated the request can exchange the authorization code.
//
// Returns:
//   - *PKCECodes: A struct containing the code verifier and challenge
//   - error: ErrRandomSourceUnavailable if the random source fails
func GeneratePKCECodes() (*PKCECodes, error) {
	codeVerifier, err := randomToken(verifierBytes)
	if err != nil {
		return nil, NewAuthenticationError(ErrRandomSourceUnavailable, fmt.Errorf("failed to generate code verifier: %w", err))
	}

	return &PKCECodes{
		CodeVerifier:  codeVerifier,
		CodeChallenge: ChallengeFromVerifier(codeVerifier),
	}, nil
}

// GenerateState generates a cryptographically secure random state parameter
// for OAuth2 flows to prevent CSRF attacks.
//
// Returns:
//   - string: A base64url encoded random state string
//   - error: ErrRandomSourceUnavailable if the random source fails
func GenerateState() (string, error) {
	state, err := randomToken(stateBytes)
	if err != nil {
		return "", NewAuthenticationError(ErrRandomSourceUnavailable, fmt.Errorf("failed to generate state: %w", err))
	}
	return state, nil
}

// ChallengeFromVerifier derives the S256 code challenge for a verifier.
// The result is always the same for the same verifier.
func ChallengeFromVerifier(codeVerifier string) string {
	return oauth2.S256ChallengeFromVerifier(codeVerifier)
}

// ValidateVerifier checks a verifier against the RFC 7636 grammar:
// 43-128 characters from [A-Za-z0-9-._~].
func ValidateVerifier(codeVerifier string) error {
	if codeVerifier == "" {
		return NewAuthenticationError(ErrInvalidArgument, fmt.Errorf("PKCE verifier is empty"))
	}
	if n := len(codeVerifier); n < minVerifierLength || n > maxVerifierLength {
		return NewAuthenticationError(ErrInvalidArgument, fmt.Errorf("PKCE verifier has invalid length %d (must be %d-%d characters)", n, minVerifierLength, maxVerifierLength))
	}
	for i := 0; i < len(codeVerifier); i++ {
		if !isUnreserved(codeVerifier[i]) {
			return NewAuthenticationError(ErrInvalidArgument, fmt.Errorf("PKCE verifier contains invalid character at position %d", i))
		}
	}
	return nil
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}

// randomToken reads n random bytes and encodes them URL-safe without padding.
func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(randReader, buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
