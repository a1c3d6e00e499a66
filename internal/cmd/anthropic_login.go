package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/router-for-me/claude-oauth/internal/auth/claude"
	"github.com/router-for-me/claude-oauth/internal/browser"
	"github.com/router-for-me/claude-oauth/internal/config"
	"github.com/router-for-me/claude-oauth/internal/misc"
	"github.com/router-for-me/claude-oauth/internal/tokenstore"
	"github.com/router-for-me/claude-oauth/internal/util"
	sdkAuth "github.com/router-for-me/claude-oauth/sdk/auth"
	log "github.com/sirupsen/logrus"
)

// DoClaudeLogin runs the interactive Claude OAuth flow and saves the tokens to store.
// With CreateAPIKey set on a console login, the minted API key is saved alongside.
//
// Parameters:
//   - ctx: Bounds the whole login
//   - cfg: The application configuration
//   - store: Where the resulting record is written
//   - options: Login options including browser behavior and prompts
//
// Returns:
//   - string: The location of the saved record
//   - error: Any failure from the flow, the API key request or the store
func DoClaudeLogin(ctx context.Context, cfg *config.Config, store tokenstore.Store, options *LoginOptions) (string, error) {
	if options == nil {
		options = &LoginOptions{}
	}
	if options.CreateAPIKey && options.Mode != claude.ModeAPIKeyCreation {
		return "", claude.NewAuthenticationError(claude.ErrInvalidConfig, fmt.Errorf("api key creation requires console mode"))
	}

	client, err := newOAuthClient(cfg, options.Async)
	if err != nil {
		return "", err
	}

	promptFn := options.Prompt
	if promptFn == nil {
		promptFn = defaultPrompt()
	}
	noBrowser := options.NoBrowser
	opener := options.Opener
	if opener == nil {
		opener = browser.SystemOpener{}
		if !noBrowser && !browser.IsAvailable() {
			log.Warn("No browser available on this system; open the URL manually")
			noBrowser = true
		}
	}

	authOpts := &sdkAuth.LoginOptions{
		NoBrowser: noBrowser,
		Opener:    opener,
		Prompt:    sdkAuth.PromptFunc(promptFn),
		Output:    options.stdout(),
	}
	if options.CopyURL {
		authOpts.OnAuthorizationURL = func(authURL string) {
			if errCopy := copyToClipboard(authURL); errCopy != nil {
				log.Warnf("failed to copy authorization url: %v", errCopy)
				return
			}
			_, _ = fmt.Fprintln(options.stdout(), "Authorization URL copied to clipboard")
		}
	}
	if options.Callback {
		oauthCfg := cfg.OAuth
		authOpts.Listener = func(flow *sdkAuth.FlowState) (sdkAuth.CallbackListener, error) {
			return claude.NewOAuthServerFromConfig(&oauthCfg, flow.State)
		}
	}

	result, err := sdkAuth.NewClaudeAuthenticator().Login(ctx, client, options.Mode, authOpts)
	if err != nil {
		return "", err
	}

	rec := tokenstore.NewRecord(options.Mode, result.Tokens, time.Now())
	if options.CreateAPIKey {
		key, errKey := client.CreateAPIKey(ctx, result.Tokens.AccessToken)
		if errKey != nil {
			return "", errKey
		}
		rec.APIKey = key
		log.Infof("Claude API key created: %s", util.HideAPIKey(key))
	}

	id := options.Output
	if id == "" {
		id = tokenstore.RecordID(rec)
	}
	misc.LogCredentialSeparator()
	location, err := store.Save(ctx, id, rec)
	if err != nil {
		return "", err
	}
	misc.LogSavingCredentials(location)
	return location, nil
}

// DoClaudeRefresh refreshes the record stored under id and writes it back.
func DoClaudeRefresh(ctx context.Context, cfg *config.Config, store tokenstore.Store, id string, options *LoginOptions) (*tokenstore.Record, error) {
	if options == nil {
		options = &LoginOptions{}
	}
	rec, err := store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	client, err := newOAuthClient(cfg, options.Async)
	if err != nil {
		return nil, err
	}

	tokens, err := client.RefreshToken(ctx, rec.RefreshToken)
	if err != nil {
		return nil, err
	}
	rec.TokenSet = *tokens
	rec.LastRefresh = time.Now()

	if _, err = store.Save(ctx, id, rec); err != nil {
		return nil, err
	}
	log.Infof("Claude token refreshed, expires in %s", tokens.ExpiresIn().Round(time.Second))
	return rec, nil
}
