package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigOptionalMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfigOptional(filepath.Join(t.TempDir(), "missing.yaml"), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OAuth.ClientID != DefaultClientID {
		t.Fatalf("expected default client id, got %q", cfg.OAuth.ClientID)
	}
	if cfg.OAuth.ResolvedRedirectURI() != DefaultRedirectURI {
		t.Fatalf("expected default redirect uri, got %q", cfg.OAuth.ResolvedRedirectURI())
	}
	if cfg.RequestTimeoutSeconds != DefaultRequestTimeoutSeconds {
		t.Fatalf("expected default timeout, got %d", cfg.RequestTimeoutSeconds)
	}
}

func TestLoadConfigRequiresFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
debug: true
proxy-url: socks5://127.0.0.1:1080
oauth:
  client-id: custom-client
  redirect-port: 1455
  request-encoding: json
  endpoints:
    token: https://example.test/token
  scopes:
    console: org:create_api_key
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Debug {
		t.Fatal("expected debug to be true")
	}
	if cfg.ProxyURL != "socks5://127.0.0.1:1080" {
		t.Fatalf("unexpected proxy url %q", cfg.ProxyURL)
	}
	if cfg.OAuth.ClientID != "custom-client" {
		t.Fatalf("unexpected client id %q", cfg.OAuth.ClientID)
	}
	if got := cfg.OAuth.ResolvedRedirectURI(); got != "http://localhost:1455/callback" {
		t.Fatalf("unexpected redirect uri %q", got)
	}
	if cfg.OAuth.Endpoints.Token != "https://example.test/token" {
		t.Fatalf("unexpected token url %q", cfg.OAuth.Endpoints.Token)
	}
	if cfg.OAuth.Endpoints.APIKey != DefaultAPIKeyURL {
		t.Fatalf("expected default api key url, got %q", cfg.OAuth.Endpoints.APIKey)
	}
	if cfg.OAuth.Scopes.Console != "org:create_api_key" || cfg.OAuth.Scopes.Subscription != DefaultScope {
		t.Fatalf("unexpected scopes %+v", cfg.OAuth.Scopes)
	}
	if err = cfg.OAuth.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestResolvedRedirectURIPrefersExplicitURI(t *testing.T) {
	c := OAuthConfig{RedirectPort: 9999, RedirectURI: "http://127.0.0.1:8080/cb"}
	if got := c.ResolvedRedirectURI(); got != "http://127.0.0.1:8080/cb" {
		t.Fatalf("unexpected redirect uri %q", got)
	}
	port, path, err := c.RedirectListenPort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if port != 8080 || path != "/cb" {
		t.Fatalf("unexpected listen target %d %q", port, path)
	}
	if !c.IsLocalRedirect() {
		t.Fatal("expected local redirect")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		mut   func(*OAuthConfig)
		field string
	}{
		{"relative redirect", func(c *OAuthConfig) { c.RedirectURI = "/callback" }, "redirect-uri"},
		{"ftp redirect", func(c *OAuthConfig) { c.RedirectURI = "ftp://host/cb" }, "redirect-uri"},
		{"port out of range", func(c *OAuthConfig) { c.RedirectPort = 70000 }, "redirect-port"},
		{"bad token url", func(c *OAuthConfig) { c.Endpoints.Token = "::not a url" }, "endpoints.token"},
		{"bad encoding", func(c *OAuthConfig) { c.RequestEncoding = "xml" }, "request-encoding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := OAuthConfig{}
			c.ApplyDefaults()
			tt.mut(&c)
			err := c.Validate()
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Fatalf("expected field %q, got %q", tt.field, vErr.Field)
			}
		})
	}
}

func TestNormalizedReturnsIndependentCopy(t *testing.T) {
	src := OAuthConfig{ClientID: "a"}
	out, err := src.Normalized()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	src.ClientID = "b"
	if out.ClientID != "a" {
		t.Fatalf("expected copy to keep client id, got %q", out.ClientID)
	}
	if src.Endpoints.Token != "" {
		t.Fatal("expected source to remain untouched by Normalized")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CLAUDE_OAUTH_CLIENT_ID", "env-client")
	t.Setenv("CLAUDE_OAUTH_REDIRECT_PORT", "4242")
	t.Setenv("CLAUDE_OAUTH_PROXY_URL", "http://proxy.local:3128")

	cfg := Default()
	if err := cfg.ApplyEnvOverrides(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OAuth.ClientID != "env-client" {
		t.Fatalf("unexpected client id %q", cfg.OAuth.ClientID)
	}
	if cfg.OAuth.RedirectPort != 4242 {
		t.Fatalf("unexpected port %d", cfg.OAuth.RedirectPort)
	}
	if cfg.ProxyURL != "http://proxy.local:3128" {
		t.Fatalf("unexpected proxy %q", cfg.ProxyURL)
	}

	t.Setenv("CLAUDE_OAUTH_REDIRECT_PORT", "abc")
	if err := Default().ApplyEnvOverrides(); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}
