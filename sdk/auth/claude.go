package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/router-for-me/claude-oauth/internal/auth/claude"
	"github.com/router-for-me/claude-oauth/internal/logging"
	"github.com/router-for-me/claude-oauth/internal/misc"
	log "github.com/sirupsen/logrus"
)

const (
	defaultManualPromptDelay = 15 * time.Second
	defaultCallbackTimeout   = 5 * time.Minute
)

// ClaudeAuthenticator runs the interactive OAuth login for Anthropic Claude accounts.
type ClaudeAuthenticator struct{}

// NewClaudeAuthenticator constructs a Claude authenticator.
func NewClaudeAuthenticator() *ClaudeAuthenticator {
	return &ClaudeAuthenticator{}
}

// Provider returns the provider identifier, "claude".
func (a *ClaudeAuthenticator) Provider() string {
	return "claude"
}

// Login starts a flow in mode, shows the authorization URL, collects the authorization
// response from the callback listener or the user's paste, and exchanges it for tokens.
func (a *ClaudeAuthenticator) Login(ctx context.Context, client FlowClient, mode Mode, opts *LoginOptions) (*LoginResult, error) {
	if client == nil {
		return nil, claude.NewAuthenticationError(claude.ErrInvalidConfig, fmt.Errorf("client is required"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if opts == nil {
		opts = &LoginOptions{}
	}
	if opts.Listener == nil && opts.Prompt == nil {
		return nil, claude.NewAuthenticationError(claude.ErrInvalidConfig, fmt.Errorf("login needs a callback listener or a prompt"))
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	ctx = logging.EnsureRequestID(ctx)

	flow, err := client.StartFlow(mode)
	if err != nil {
		return nil, err
	}
	entry := logging.FromContext(ctx).WithFields(log.Fields{"flow_id": flow.FlowID, "mode": flow.Mode.String()})

	var listener CallbackListener
	if opts.Listener != nil {
		listener, err = opts.Listener(flow)
		if err != nil {
			return nil, err
		}
		if err = listener.Start(); err != nil {
			return nil, err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if stopErr := listener.Stop(stopCtx); stopErr != nil {
				entry.Warnf("claude oauth server stop error: %v", stopErr)
			}
		}()
	}

	showAuthorizationURL(out, entry, flow.AuthorizationURL, opts)

	raw, err := awaitAuthorizationResponse(ctx, out, listener, opts)
	if err != nil {
		return nil, err
	}

	entry.Debug("Claude authorization code received; exchanging for tokens")
	tokens, err := client.ExchangeCode(ctx, raw, flow.State, flow.Verifier)
	if err != nil {
		return nil, err
	}

	_, _ = fmt.Fprintln(out, "Claude authentication successful")
	return &LoginResult{Flow: flow, Tokens: tokens}, nil
}

func showAuthorizationURL(out io.Writer, entry *log.Entry, authURL string, opts *LoginOptions) {
	if opts.OnAuthorizationURL != nil {
		opts.OnAuthorizationURL(authURL)
	}
	if !opts.NoBrowser && opts.Opener != nil {
		_, _ = fmt.Fprintln(out, "Opening browser for Claude authentication")
		err := opts.Opener.Open(authURL)
		if err == nil {
			return
		}
		entry.Warnf("Failed to open browser automatically: %v", err)
	}
	_, _ = fmt.Fprintf(out, "Visit the following URL to continue authentication:\n%s\n", authURL)
}

// awaitAuthorizationResponse returns the raw "code#state" value. With a listener the
// user is offered the paste prompt after ManualPromptDelay; without one the prompt is
// shown at once and repeated on empty input.
func awaitAuthorizationResponse(ctx context.Context, out io.Writer, listener CallbackListener, opts *LoginOptions) (string, error) {
	if listener == nil {
		for {
			raw, ok, err := promptForCallback(opts.Prompt)
			if err != nil || ok {
				return raw, err
			}
			if err = ctx.Err(); err != nil {
				return "", err
			}
		}
	}

	_, _ = fmt.Fprintln(out, "Waiting for Claude authentication callback...")

	timeout := opts.CallbackTimeout
	if timeout <= 0 {
		timeout = defaultCallbackTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	callbackCh := make(chan *CallbackResult, 1)
	callbackErrCh := make(chan error, 1)
	go func() {
		result, errWait := listener.WaitForCallback(waitCtx)
		if errWait != nil {
			callbackErrCh <- errWait
			return
		}
		callbackCh <- result
	}()

	var manualPromptTimer *time.Timer
	var manualPromptC <-chan time.Time
	if opts.Prompt != nil {
		delay := opts.ManualPromptDelay
		if delay <= 0 {
			delay = defaultManualPromptDelay
		}
		manualPromptTimer = time.NewTimer(delay)
		defer manualPromptTimer.Stop()
		manualPromptC = manualPromptTimer.C
	}

	for {
		select {
		case result := <-callbackCh:
			return callbackRaw(result)
		case err := <-callbackErrCh:
			return "", err
		case <-manualPromptC:
			select {
			case result := <-callbackCh:
				return callbackRaw(result)
			case err := <-callbackErrCh:
				return "", err
			default:
			}
			raw, ok, err := promptForCallback(opts.Prompt)
			if err != nil || ok {
				return raw, err
			}
			// Empty input keeps waiting on the listener.
			manualPromptTimer.Reset(time.Second)
		}
	}
}

func promptForCallback(prompt PromptFunc) (string, bool, error) {
	input, err := prompt("Paste the Claude callback URL or code#state (or press Enter to keep waiting): ")
	if err != nil {
		return "", false, err
	}
	parsed, err := misc.ParseOAuthCallback(input)
	if err != nil {
		return "", false, claude.NewAuthenticationError(claude.ErrMalformedResponse, err)
	}
	if parsed == nil {
		return "", false, nil
	}
	if parsed.Error != "" {
		return "", false, claude.NewOAuthError(parsed.Error, parsed.ErrorDescription, http.StatusBadRequest)
	}
	return parsed.RawResponse(), true, nil
}

func callbackRaw(result *CallbackResult) (string, error) {
	if result == nil {
		return "", claude.NewAuthenticationError(claude.ErrMalformedResponse, fmt.Errorf("empty callback"))
	}
	if result.Error != "" {
		return "", claude.NewOAuthError(result.Error, result.ErrorDescription, http.StatusBadRequest)
	}
	return result.RawResponse(), nil
}
