// Package auth is the public API of the Claude OAuth client.
//
// Client runs every provider call on the calling goroutine. AsyncClient returns a Future
// for each call instead. Both drive the same engine, so for identical provider responses
// they produce identical token sets. Neither stores tokens; persisting the returned
// TokenSet is the caller's job.
package auth

import (
	"github.com/router-for-me/claude-oauth/internal/auth/claude"
	"github.com/router-for-me/claude-oauth/internal/transport"
)

// Mode selects the authorization endpoint and scope set of a flow.
type Mode = claude.Mode

// Supported modes.
const (
	ModeSubscription   = claude.ModeSubscription
	ModeAPIKeyCreation = claude.ModeAPIKeyCreation
)

// FlowState holds the PKCE material, state and authorization URL of one flow.
type FlowState = claude.FlowState

// TokenSet is the immutable result of an exchange or refresh.
type TokenSet = claude.TokenSet

// Account is the account and organization reported with a token set.
type Account = claude.Account

// CallbackResult is what the local callback listener captured.
type CallbackResult = claude.CallbackResult

// AuthenticationError is the error kind matched by the Err* sentinels.
type AuthenticationError = claude.AuthenticationError

// OAuthError is an error returned by the provider on the redirect.
type OAuthError = claude.OAuthError

// ProviderError is a non-2xx reply from the token or api key endpoint.
type ProviderError = claude.ProviderError

// TransportError is a network failure before any reply arrived.
type TransportError = claude.TransportError

// Request is an outgoing provider request.
type Request = transport.Request

// Response is a fully read provider reply.
type Response = transport.Response

// RoundTripper performs a request on the calling goroutine.
type RoundTripper = transport.RoundTripper

// RoundTripperFunc adapts a function to RoundTripper.
type RoundTripperFunc = transport.RoundTripperFunc

// AsyncRoundTripper submits a request and returns a Future for the reply.
type AsyncRoundTripper = transport.AsyncRoundTripper

// Future is the pending result of an AsyncClient call.
type Future[T any] = transport.Future[T]

// Error sentinels, matched with errors.Is.
var (
	ErrRandomSourceUnavailable = claude.ErrRandomSourceUnavailable
	ErrInvalidConfig           = claude.ErrInvalidConfig
	ErrInvalidArgument         = claude.ErrInvalidArgument
	ErrMalformedResponse       = claude.ErrMalformedResponse
	ErrStateMismatch           = claude.ErrStateMismatch
	ErrTransport               = claude.ErrTransport
	ErrProvider                = claude.ErrProvider
	ErrUnauthorized            = claude.ErrUnauthorized
	ErrInvalidProviderResponse = claude.ErrInvalidProviderResponse
	ErrServerStartFailed       = claude.ErrServerStartFailed
	ErrPortInUse               = claude.ErrPortInUse
	ErrCallbackTimeout         = claude.ErrCallbackTimeout
)

// DefaultRefreshMargin is the lead time commonly passed to TokenSet.NeedsRefresh.
const DefaultRefreshMargin = claude.DefaultRefreshMargin

// ParseMode parses "subscription" or "console" (and their aliases) into a Mode.
func ParseMode(s string) (Mode, error) { return claude.ParseMode(s) }

// IsUnauthorized reports whether err is a provider rejection of the bearer token.
func IsUnauthorized(err error) bool { return claude.IsUnauthorized(err) }

// IsOAuthError reports whether err carries an error returned on the OAuth redirect.
func IsOAuthError(err error) bool { return claude.IsOAuthError(err) }

// GetUserFriendlyMessage returns a short message suitable for end users.
func GetUserFriendlyMessage(err error) string { return claude.GetUserFriendlyMessage(err) }

// Async adapts a blocking RoundTripper for use with WithAsyncRoundTripper.
func Async(rt RoundTripper) AsyncRoundTripper { return transport.Async(rt) }
