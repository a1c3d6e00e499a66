package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/claude-oauth/internal/auth/claude"
	"github.com/router-for-me/claude-oauth/internal/config"
	"github.com/router-for-me/claude-oauth/internal/tokenstore"
	sdkAuth "github.com/router-for-me/claude-oauth/sdk/auth"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type providerStub struct {
	server    *httptest.Server
	exchanges atomic.Int32
	refreshes atomic.Int32
	keys      atomic.Int32
}

func newProviderStub(t *testing.T) *providerStub {
	t.Helper()
	stub := &providerStub{}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/create_api_key" {
			stub.keys.Add(1)
			if r.Header.Get("Authorization") != "Bearer at-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `{"raw_key":"sk-ant-api03-minted"}`)
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			stub.exchanges.Add(1)
			_, _ = io.WriteString(w, `{"access_token":"at-1","refresh_token":"rt-1","expires_in":3600,"account":{"email_address":"dev@example.com"}}`)
		case "refresh_token":
			stub.refreshes.Add(1)
			_, _ = io.WriteString(w, `{"access_token":"at-2","expires_in":3600}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *providerStub) config(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DisableTLSFingerprint = true
	cfg.AuthDir = t.TempDir()
	cfg.OAuth.Endpoints.Token = s.server.URL + "/v1/oauth/token"
	cfg.OAuth.Endpoints.APIKey = s.server.URL + "/api/create_api_key"
	return cfg
}

func queryParam(t *testing.T, rawURL, key string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	return u.Query().Get(key)
}

func pasteOptions(t *testing.T, mode claude.Mode) *LoginOptions {
	t.Helper()
	var opened string
	return &LoginOptions{
		Mode: mode,
		Opener: sdkAuth.OpenerFunc(func(u string) error {
			opened = u
			return nil
		}),
		Prompt: func(string) (string, error) {
			return "code-1#" + queryParam(t, opened, "state"), nil
		},
		Stdout: io.Discard,
	}
}

func TestDoClaudeLoginSavesRecord(t *testing.T) {
	t.Parallel()

	for _, async := range []bool{false, true} {
		t.Run(fmt.Sprintf("async=%t", async), func(t *testing.T) {
			t.Parallel()

			stub := newProviderStub(t)
			cfg := stub.config(t)
			store := tokenstore.NewFileStore(cfg.AuthDir)
			opts := pasteOptions(t, claude.ModeAPIKeyCreation)
			opts.CreateAPIKey = true
			opts.Async = async

			location, err := DoClaudeLogin(context.Background(), cfg, store, opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.HasSuffix(location, "claude-dev@example.com.json") {
				t.Fatalf("unexpected location %q", location)
			}
			rec, err := store.Load(context.Background(), "claude-dev@example.com.json")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.APIKey != "sk-ant-api03-minted" || rec.AccessToken != "at-1" || rec.Mode != "console" {
				t.Fatalf("unexpected record %+v", rec)
			}
			if stub.exchanges.Load() != 1 || stub.keys.Load() != 1 {
				t.Fatalf("expected one exchange and one key request")
			}
		})
	}
}

func TestDoClaudeLoginRejectsAPIKeyInSubscriptionMode(t *testing.T) {
	t.Parallel()

	stub := newProviderStub(t)
	cfg := stub.config(t)
	opts := pasteOptions(t, claude.ModeSubscription)
	opts.CreateAPIKey = true
	_, err := DoClaudeLogin(context.Background(), cfg, tokenstore.NewFileStore(cfg.AuthDir), opts)
	if !errors.Is(err, claude.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if stub.exchanges.Load() != 0 {
		t.Fatalf("expected no provider traffic")
	}
}

func TestDoClaudeLoginWithCallbackListener(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()

	stub := newProviderStub(t)
	cfg := stub.config(t)
	cfg.OAuth.RedirectPort = port

	opts := &LoginOptions{
		Mode:     claude.ModeSubscription,
		Callback: true,
		Opener: sdkAuth.OpenerFunc(func(u string) error {
			redirect := queryParam(t, u, "redirect_uri")
			state := queryParam(t, u, "state")
			go func() {
				target := strings.Replace(redirect, "localhost", "127.0.0.1", 1) + "?code=code-1&state=" + url.QueryEscape(state)
				resp, errGet := http.Get(target)
				if errGet == nil {
					_ = resp.Body.Close()
				}
			}()
			return nil
		}),
		Prompt: func(string) (string, error) { return "", nil },
		Output: "login.json",
		Stdout: io.Discard,
	}

	store := tokenstore.NewFileStore(cfg.AuthDir)
	if _, err = DoClaudeLogin(context.Background(), cfg, store, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err = store.Load(context.Background(), "login.json"); err != nil {
		t.Fatalf("expected record under the requested id, got %v", err)
	}
}

func TestDoClaudeLoginCopiesURL(t *testing.T) {
	var copied string
	original := copyToClipboard
	copyToClipboard = func(text string) error {
		copied = text
		return nil
	}
	defer func() { copyToClipboard = original }()

	stub := newProviderStub(t)
	cfg := stub.config(t)
	opts := &LoginOptions{
		Mode:      claude.ModeSubscription,
		NoBrowser: true,
		CopyURL:   true,
		Prompt: func(string) (string, error) {
			return "code-1#" + queryParam(t, copied, "state"), nil
		},
		Stdout: io.Discard,
	}

	if _, err := DoClaudeLogin(context.Background(), cfg, tokenstore.NewFileStore(cfg.AuthDir), opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(copied, "https://claude.ai/oauth/authorize?") {
		t.Fatalf("expected the authorization url on the clipboard, got %q", copied)
	}
}

func TestDoClaudeRefreshUpdatesRecord(t *testing.T) {
	t.Parallel()

	stub := newProviderStub(t)
	cfg := stub.config(t)
	store := tokenstore.NewFileStore(cfg.AuthDir)
	rec := tokenstore.NewRecord(claude.ModeSubscription, &claude.TokenSet{AccessToken: "at-1", RefreshToken: "rt-1"}, time.Now())
	if _, err := store.Save(context.Background(), "claude.json", rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := DoClaudeRefresh(context.Background(), cfg, store, "claude.json", &LoginOptions{Async: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.AccessToken != "at-2" || updated.RefreshToken != "rt-1" {
		t.Fatalf("expected new access token and carried refresh token, got %+v", updated.TokenSet)
	}
	loaded, err := store.Load(context.Background(), "claude.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.AccessToken != "at-2" {
		t.Fatalf("expected refreshed record to be saved")
	}
	if _, err = DoClaudeRefresh(context.Background(), cfg, store, "missing.json", nil); !errors.Is(err, tokenstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewStore(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.AuthDir = t.TempDir()
	ctx := context.Background()
	if _, ok := mustStore(t, "", cfg).(*tokenstore.FileStore); !ok {
		t.Fatalf("expected file store by default")
	}
	if _, ok := mustStore(t, "keyring", cfg).(*tokenstore.KeyringStore); !ok {
		t.Fatalf("expected keyring store")
	}
	if _, ok := mustStore(t, "git", cfg).(*tokenstore.GitStore); !ok {
		t.Fatalf("expected git store")
	}
	if _, err := os.Stat(filepath.Join(cfg.AuthDir, "gitstore", ".git")); err != nil {
		t.Fatalf("expected git repository under the auth dir, got %v", err)
	}
	if _, err := NewStore(ctx, "s3", cfg); err == nil {
		t.Fatalf("expected error for unknown store")
	}
}

func TestNewStoreReadsEnvironment(t *testing.T) {
	t.Setenv("PGSTORE_DSN", "")
	t.Setenv("OBJECTSTORE_ENDPOINT", "http://minio.local:9000")
	t.Setenv("OBJECTSTORE_BUCKET", "tokens")
	t.Setenv("OBJECTSTORE_ACCESS_KEY", "ak")
	t.Setenv("OBJECTSTORE_SECRET_KEY", "sk")

	cfg := config.Default()
	if _, err := NewStore(context.Background(), "postgres", cfg); err == nil {
		t.Fatalf("expected error without PGSTORE_DSN")
	}
	if _, ok := mustStore(t, "object", cfg).(*tokenstore.ObjectStore); !ok {
		t.Fatalf("expected object store")
	}
}

func mustStore(t *testing.T, kind string, cfg *config.Config) tokenstore.Store {
	t.Helper()
	s, err := NewStore(context.Background(), kind, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}
