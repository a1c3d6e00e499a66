// Package cmd implements the claude-auth commands on top of the public OAuth client.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/router-for-me/claude-oauth/internal/auth/claude"
	"github.com/router-for-me/claude-oauth/internal/config"
	"github.com/router-for-me/claude-oauth/internal/tokenstore"
	sdkAuth "github.com/router-for-me/claude-oauth/sdk/auth"
)

// LoginOptions contains options for the login and refresh commands.
type LoginOptions struct {
	// Mode selects subscription or console authorization.
	Mode claude.Mode

	// NoBrowser indicates whether to skip opening the browser automatically.
	NoBrowser bool

	// Callback runs the local callback listener; the redirect must point at localhost.
	Callback bool

	// CreateAPIKey mints an API key after a console login.
	CreateAPIKey bool

	// Async drives provider calls through the non-blocking client.
	Async bool

	// CopyURL copies the authorization URL to the clipboard.
	CopyURL bool

	// Output is the record id or path to write; empty derives one from the account.
	Output string

	// Opener replaces the system browser.
	Opener sdkAuth.Opener

	// Prompt allows the caller to provide interactive input when needed.
	Prompt func(prompt string) (string, error)

	// Stdout receives user-facing messages; nil means os.Stdout.
	Stdout io.Writer
}

func (o *LoginOptions) stdout() io.Writer {
	if o.Stdout == nil {
		return os.Stdout
	}
	return o.Stdout
}

// defaultPrompt reads one line from stdin.
func defaultPrompt() func(string) (string, error) {
	reader := bufio.NewReader(os.Stdin)
	return func(prompt string) (string, error) {
		fmt.Print(prompt)
		value, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(value), nil
	}
}

// copyToClipboard is clipboard.WriteAll, replaceable in tests.
var copyToClipboard = clipboard.WriteAll

// oauthClient is the blocking surface the commands need.
type oauthClient interface {
	sdkAuth.FlowClient
	RefreshToken(ctx context.Context, refreshToken string) (*sdkAuth.TokenSet, error)
	CreateAPIKey(ctx context.Context, accessToken string) (string, error)
}

// newOAuthClient builds the blocking client, or the async one awaited call by call.
func newOAuthClient(cfg *config.Config, async bool) (oauthClient, error) {
	opts := []sdkAuth.Option{sdkAuth.WithSDKConfig(&cfg.SDKConfig)}
	if !async {
		return sdkAuth.NewClient(&cfg.OAuth, opts...)
	}
	client, err := sdkAuth.NewAsyncClient(&cfg.OAuth, opts...)
	if err != nil {
		return nil, err
	}
	return awaitingClient{AsyncClient: client, flow: client.Blocking()}, nil
}

type awaitingClient struct {
	*sdkAuth.AsyncClient
	flow sdkAuth.FlowClient
}

func (a awaitingClient) ExchangeCode(ctx context.Context, rawResponse, expectedState, verifier string) (*sdkAuth.TokenSet, error) {
	return a.flow.ExchangeCode(ctx, rawResponse, expectedState, verifier)
}

func (a awaitingClient) RefreshToken(ctx context.Context, refreshToken string) (*sdkAuth.TokenSet, error) {
	return a.AsyncClient.RefreshToken(ctx, refreshToken).Await(ctx)
}

func (a awaitingClient) CreateAPIKey(ctx context.Context, accessToken string) (string, error) {
	return a.AsyncClient.CreateAPIKey(ctx, accessToken).Await(ctx)
}

// NewStore returns the token store named by kind: "file" (default), "keyring",
// "postgres", "object" or "git". The remote backends read their settings from the
// PGSTORE_*, OBJECTSTORE_* and GITSTORE_* environment variables.
func NewStore(ctx context.Context, kind string, cfg *config.Config) (tokenstore.Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "file":
		return tokenstore.NewFileStore(cfg.AuthDir), nil
	case "keyring":
		return tokenstore.NewKeyringStore(lookupEnv("KEYRING_SERVICE")), nil
	case "postgres":
		store, err := tokenstore.NewPostgresStore(ctx, tokenstore.PostgresConfig{
			DSN:    lookupEnv("PGSTORE_DSN", "pgstore_dsn"),
			Schema: lookupEnv("PGSTORE_SCHEMA", "pgstore_schema"),
			Table:  lookupEnv("PGSTORE_TABLE", "pgstore_table"),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "object":
		store, err := tokenstore.NewObjectStore(tokenstore.ObjectConfig{
			Endpoint:  lookupEnv("OBJECTSTORE_ENDPOINT", "objectstore_endpoint"),
			Bucket:    lookupEnv("OBJECTSTORE_BUCKET", "objectstore_bucket"),
			AccessKey: lookupEnv("OBJECTSTORE_ACCESS_KEY", "objectstore_access_key"),
			SecretKey: lookupEnv("OBJECTSTORE_SECRET_KEY", "objectstore_secret_key"),
			Region:    lookupEnv("OBJECTSTORE_REGION", "objectstore_region"),
			Prefix:    lookupEnv("OBJECTSTORE_PREFIX", "objectstore_prefix"),
			UseSSL:    true,
			PathStyle: true,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "git":
		repoDir := lookupEnv("GITSTORE_LOCAL_PATH", "gitstore_local_path")
		if repoDir == "" {
			repoDir = filepath.Join(cfg.AuthDir, "gitstore")
		}
		store, err := tokenstore.NewGitStore(tokenstore.GitConfig{
			RepoDir:  repoDir,
			Remote:   lookupEnv("GITSTORE_GIT_URL", "gitstore_git_url"),
			Username: lookupEnv("GITSTORE_GIT_USERNAME", "gitstore_git_username"),
			Password: lookupEnv("GITSTORE_GIT_TOKEN", "gitstore_git_token"),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown token store %q", kind)
	}
}

// lookupEnv returns the first non-empty value among keys.
func lookupEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
