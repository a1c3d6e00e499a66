package claude

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// OAuthError represents an OAuth-specific error reported on the redirect,
// e.g. "error=access_denied".
type OAuthError struct {
	// Code is the OAuth error code.
	Code string `json:"error"`
	// Description is a human-readable description of the error.
	Description string `json:"error_description,omitempty"`
	// URI is a URI identifying a human-readable web page with information about the error.
	URI string `json:"error_uri,omitempty"`
	// StatusCode is the HTTP status code associated with the error.
	StatusCode int `json:"-"`
}

// Error returns a string representation of the OAuth error.
func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("OAuth error %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("OAuth error: %s", e.Code)
}

// NewOAuthError creates a new OAuth error with the specified code, description, and status code.
func NewOAuthError(code, description string, statusCode int) *OAuthError {
	return &OAuthError{
		Code:        code,
		Description: description,
		StatusCode:  statusCode,
	}
}

// AuthenticationError represents authentication-related errors.
// Two AuthenticationErrors match under errors.Is when their Type is equal,
// so wrapped instances still compare equal to the package sentinels.
type AuthenticationError struct {
	// Type is the type of authentication error.
	Type string `json:"type"`
	// Message is a human-readable message describing the error.
	Message string `json:"message"`
	// Code is the HTTP status code associated with the error.
	Code int `json:"code"`
	// Cause is the underlying error that caused this authentication error.
	Cause error `json:"-"`
}

// Error returns a string representation of the authentication error.
func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the cause.
func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

// Is matches any AuthenticationError of the same Type.
func (e *AuthenticationError) Is(target error) bool {
	var t *AuthenticationError
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

// Error kinds surfaced by the flow engine and the callback listener.
var (
	// ErrRandomSourceUnavailable means the secure random generator failed. Not retryable.
	ErrRandomSourceUnavailable = &AuthenticationError{
		Type:    "random_source_unavailable",
		Message: "Secure random source is unavailable",
		Code:    http.StatusInternalServerError,
	}

	// ErrInvalidConfig represents a configuration that can never work.
	ErrInvalidConfig = &AuthenticationError{
		Type:    "invalid_config",
		Message: "OAuth client configuration is invalid",
		Code:    http.StatusBadRequest,
	}

	// ErrInvalidArgument represents an empty token or malformed verifier passed by the caller.
	ErrInvalidArgument = &AuthenticationError{
		Type:    "invalid_argument",
		Message: "Invalid argument",
		Code:    http.StatusBadRequest,
	}

	// ErrMalformedResponse represents an authorization response that cannot be parsed.
	ErrMalformedResponse = &AuthenticationError{
		Type:    "malformed_response",
		Message: "Authorization response is malformed",
		Code:    http.StatusBadRequest,
	}

	// ErrStateMismatch represents an error for invalid OAuth state parameter.
	ErrStateMismatch = &AuthenticationError{
		Type:    "invalid_state",
		Message: "OAuth state parameter does not match the flow",
		Code:    http.StatusBadRequest,
	}

	// ErrTransport represents a network-level failure. Match with errors.Is; the
	// concrete error is a *TransportError.
	ErrTransport = &AuthenticationError{
		Type:    "transport_error",
		Message: "Request to the OAuth provider failed",
		Code:    http.StatusBadGateway,
	}

	// ErrProvider represents any non-2xx reply. The concrete error is a *ProviderError.
	ErrProvider = &AuthenticationError{
		Type:    "provider_error",
		Message: "OAuth provider rejected the request",
		Code:    http.StatusBadGateway,
	}

	// ErrUnauthorized is matched by a *ProviderError carrying HTTP 401.
	ErrUnauthorized = &AuthenticationError{
		Type:    "unauthorized",
		Message: "Access token is invalid or expired",
		Code:    http.StatusUnauthorized,
	}

	// ErrInvalidProviderResponse represents a 2xx reply with missing or unusable fields.
	ErrInvalidProviderResponse = &AuthenticationError{
		Type:    "invalid_provider_response",
		Message: "OAuth provider returned an unusable response",
		Code:    http.StatusBadGateway,
	}

	// ErrServerStartFailed represents an error when starting the OAuth callback server fails.
	ErrServerStartFailed = &AuthenticationError{
		Type:    "server_start_failed",
		Message: "Failed to start OAuth callback server",
		Code:    http.StatusInternalServerError,
	}

	// ErrPortInUse represents an error when the OAuth callback port is already in use.
	ErrPortInUse = &AuthenticationError{
		Type:    "port_in_use",
		Message: "OAuth callback port is already in use",
		Code:    13, // Special exit code for port-in-use
	}

	// ErrCallbackTimeout represents an error when waiting for OAuth callback times out.
	ErrCallbackTimeout = &AuthenticationError{
		Type:    "callback_timeout",
		Message: "Timeout waiting for OAuth callback",
		Code:    http.StatusRequestTimeout,
	}
)

// NewAuthenticationError creates a new authentication error with a cause based on a base error.
func NewAuthenticationError(baseErr *AuthenticationError, cause error) *AuthenticationError {
	return &AuthenticationError{
		Type:    baseErr.Type,
		Message: baseErr.Message,
		Code:    baseErr.Code,
		Cause:   cause,
	}
}

// TransportError wraps a failure of the injected transport.
type TransportError struct {
	// Op names the engine operation, e.g. "token exchange".
	Op string
	// Err is the transport's error, possibly a context error.
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Op, e.Err)
}

// Unwrap returns the transport's error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is matches ErrTransport.
func (e *TransportError) Is(target error) bool {
	return isKind(target, ErrTransport)
}

// ProviderError is a non-2xx reply from the provider.
type ProviderError struct {
	// Op names the engine operation, e.g. "token refresh".
	Op string
	// StatusCode is the HTTP status.
	StatusCode int
	// Body is the raw response body.
	Body string
	// Message is the provider's error message when the body is structured.
	Message string
	// Hint is a short diagnosis derived from the status and body.
	Hint string
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
	if e.Hint != "" {
		msg += "\nHint: " + e.Hint
	}
	return msg
}

// Is matches ErrProvider, and ErrUnauthorized for HTTP 401.
func (e *ProviderError) Is(target error) bool {
	if isKind(target, ErrProvider) {
		return true
	}
	return e.StatusCode == http.StatusUnauthorized && isKind(target, ErrUnauthorized)
}

// newProviderError builds a ProviderError, extracting the structured message with gjson.
func newProviderError(op string, status int, body []byte) *ProviderError {
	text := string(body)
	message := ""
	for _, path := range []string{"error.message", "error_description", "message", "error"} {
		if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String {
			message = v.String()
			break
		}
	}
	return &ProviderError{
		Op:         op,
		StatusCode: status,
		Body:       text,
		Message:    message,
		Hint:       providerHint(status, text),
	}
}

// providerHint gives helpful hints based on common error scenarios.
func providerHint(status int, body string) string {
	switch {
	case status == http.StatusBadRequest:
		switch {
		case strings.Contains(body, "verifier"):
			return "The PKCE verifier doesn't match. Make sure you're using the verifier from the same flow."
		case strings.Contains(body, "code"):
			return "The authorization code may be invalid, expired, or already used. Please try the flow again."
		case strings.Contains(body, "state"):
			return "The state parameter is invalid. This could indicate a security issue."
		default:
			return "Bad request - check that all parameters are correct."
		}
	case status == http.StatusUnauthorized:
		return "Authentication failed - the access token may be invalid or expired."
	case status == http.StatusForbidden:
		return "Access forbidden - you may not have permission to perform this action."
	case status == http.StatusNotFound:
		return "Endpoint not found - the API URL may have changed."
	case status == http.StatusTooManyRequests:
		return "Rate limit exceeded - please wait before retrying."
	case status >= 500 && status <= 599:
		return "Server error - this is an issue on Anthropic's side. Please try again later."
	}
	return ""
}

func isKind(target error, kind *AuthenticationError) bool {
	var t *AuthenticationError
	return errors.As(target, &t) && t.Type == kind.Type
}

// IsAuthenticationError checks if an error is an authentication error.
func IsAuthenticationError(err error) bool {
	var authenticationError *AuthenticationError
	ok := errors.As(err, &authenticationError)
	return ok
}

// IsOAuthError checks if an error is an OAuth error.
func IsOAuthError(err error) bool {
	var oAuthError *OAuthError
	ok := errors.As(err, &oAuthError)
	return ok
}

// IsUnauthorized reports whether err is a provider 401, the signal for a
// caller-driven refresh-and-retry.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// GetUserFriendlyMessage returns a user-friendly error message based on the error type.
func GetUserFriendlyMessage(err error) string {
	var providerErr *ProviderError
	var transportErr *TransportError
	var authErr *AuthenticationError
	var oauthErr *OAuthError

	switch {
	case errors.As(err, &providerErr):
		if providerErr.StatusCode == http.StatusUnauthorized {
			return "Your authentication has expired. Please refresh your token or log in again."
		}
		if providerErr.Hint != "" {
			return providerErr.Hint
		}
		return fmt.Sprintf("The OAuth provider rejected the request (HTTP %d).", providerErr.StatusCode)
	case errors.As(err, &transportErr):
		return "Could not reach the OAuth provider. Check your network or proxy settings."
	case errors.As(err, &authErr):
		switch authErr.Type {
		case ErrStateMismatch.Type:
			return "Security validation failed: the response does not belong to this login. Please start again."
		case ErrMalformedResponse.Type:
			return "The pasted authorization response is not valid. Copy the full code#state value."
		case ErrInvalidConfig.Type:
			return "The OAuth client configuration is invalid."
		case ErrRandomSourceUnavailable.Type:
			return "The system random number generator is unavailable."
		case ErrPortInUse.Type:
			return "The required port is already in use. Please close any applications using the callback port and try again."
		case ErrCallbackTimeout.Type:
			return "Authentication timed out. Please try again."
		default:
			return "Authentication failed. Please try again."
		}
	case errors.As(err, &oauthErr):
		switch oauthErr.Code {
		case "access_denied":
			return "Authentication was cancelled or denied."
		case "invalid_request":
			return "Invalid authentication request. Please try again."
		case "server_error":
			return "Authentication server error. Please try again later."
		default:
			return fmt.Sprintf("Authentication failed: %s", oauthErr.Description)
		}
	default:
		return "An unexpected error occurred. Please try again."
	}
}
