package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// OAuth defaults for Anthropic's Claude endpoints.
const (
	DefaultClientID                 = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"
	DefaultRedirectURI              = "https://console.anthropic.com/oauth/code/callback"
	DefaultSubscriptionAuthorizeURL = "https://claude.ai/oauth/authorize"
	DefaultConsoleAuthorizeURL      = "https://console.anthropic.com/oauth/authorize"
	DefaultTokenURL                 = "https://console.anthropic.com/v1/oauth/token"
	DefaultAPIKeyURL                = "https://api.anthropic.com/api/oauth/claude_cli/create_api_key"
	DefaultScope                    = "org:create_api_key user:profile user:inference"
	DefaultCallbackPath             = "/callback"
	DefaultRequestTimeoutSeconds    = 30
)

// Request body encodings accepted by RequestEncoding.
const (
	EncodingForm = "form"
	EncodingJSON = "json"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	SDKConfig `yaml:",inline"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile writes logs to rotating files instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogsMaxTotalSizeMB caps the size of the logs directory. <= 0 disables the cap.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb" json:"logs-max-total-size-mb"`

	// AuthDir is where the CLI persists token files. Supports a leading "~".
	AuthDir string `yaml:"auth-dir" json:"auth-dir"`

	// OAuth holds the OAuth client settings.
	OAuth OAuthConfig `yaml:"oauth" json:"oauth"`
}

// OAuthConfig is the OAuth client configuration. It is copied when a client is
// constructed, so later changes to the caller's value have no effect on that client.
type OAuthConfig struct {
	// ClientID overrides the OAuth client identifier.
	ClientID string `yaml:"client-id" json:"client-id"`

	// RedirectPort builds a local redirect URI http://localhost:<port>/callback.
	// Ignored when RedirectURI is set.
	RedirectPort int `yaml:"redirect-port" json:"redirect-port"`

	// RedirectURI overrides the full callback URL.
	RedirectURI string `yaml:"redirect-uri" json:"redirect-uri"`

	// Endpoints overrides the provider URLs.
	Endpoints Endpoints `yaml:"endpoints" json:"endpoints"`

	// Scopes overrides the scope requested per mode.
	Scopes Scopes `yaml:"scopes" json:"scopes"`

	// RequestEncoding selects how token requests are encoded: "form" or "json".
	RequestEncoding string `yaml:"request-encoding" json:"request-encoding"`

	// AllowBareCode accepts an authorization response without an embedded state
	// even when an expected state is supplied.
	AllowBareCode bool `yaml:"allow-bare-code" json:"allow-bare-code"`
}

// Endpoints groups the provider URLs.
type Endpoints struct {
	SubscriptionAuthorize string `yaml:"subscription-authorize" json:"subscription-authorize"`
	ConsoleAuthorize      string `yaml:"console-authorize" json:"console-authorize"`
	Token                 string `yaml:"token" json:"token"`
	APIKey                string `yaml:"api-key" json:"api-key"`
}

// Scopes groups the per-mode scope strings.
type Scopes struct {
	Subscription string `yaml:"subscription" json:"subscription"`
	Console      string `yaml:"console" json:"console"`
}

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid %s: %s", e.Field, e.Reason)
}

// Default returns a configuration populated with the documented defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	cfg.OAuth.ApplyDefaults()
	return cfg
}

// LoadConfig reads a YAML configuration file. The file must exist.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads a YAML configuration file. When optional is true a
// missing or empty path yields the defaults instead of an error.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(configFile) == "" {
		if optional {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: file path is required")
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: failed to read %s: %w", configFile, err)
	}
	if len(data) > 0 {
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", configFile, err)
		}
	}
	cfg.OAuth.ApplyDefaults()
	return cfg, nil
}

// ApplyEnvOverrides applies CLAUDE_OAUTH_* environment variables on top of cfg.
func (cfg *Config) ApplyEnvOverrides() error {
	lookupEnv := func(keys ...string) (string, bool) {
		for _, key := range keys {
			if value, ok := os.LookupEnv(key); ok {
				if trimmed := strings.TrimSpace(value); trimmed != "" {
					return trimmed, true
				}
			}
		}
		return "", false
	}

	if value, ok := lookupEnv("CLAUDE_OAUTH_CLIENT_ID"); ok {
		cfg.OAuth.ClientID = value
	}
	if value, ok := lookupEnv("CLAUDE_OAUTH_REDIRECT_URI"); ok {
		cfg.OAuth.RedirectURI = value
	}
	if value, ok := lookupEnv("CLAUDE_OAUTH_REDIRECT_PORT"); ok {
		port, err := strconv.Atoi(value)
		if err != nil {
			return &ValidationError{Field: "CLAUDE_OAUTH_REDIRECT_PORT", Reason: "not a number"}
		}
		cfg.OAuth.RedirectPort = port
	}
	if value, ok := lookupEnv("CLAUDE_OAUTH_TOKEN_URL"); ok {
		cfg.OAuth.Endpoints.Token = value
	}
	if value, ok := lookupEnv("CLAUDE_OAUTH_API_KEY_URL"); ok {
		cfg.OAuth.Endpoints.APIKey = value
	}
	if value, ok := lookupEnv("CLAUDE_OAUTH_PROXY_URL", "HTTPS_PROXY", "https_proxy"); ok && cfg.ProxyURL == "" {
		cfg.ProxyURL = value
	}
	return nil
}

// ApplyDefaults fills every empty field with its default value.
func (c *OAuthConfig) ApplyDefaults() {
	if strings.TrimSpace(c.ClientID) == "" {
		c.ClientID = DefaultClientID
	}
	if c.Endpoints.SubscriptionAuthorize == "" {
		c.Endpoints.SubscriptionAuthorize = DefaultSubscriptionAuthorizeURL
	}
	if c.Endpoints.ConsoleAuthorize == "" {
		c.Endpoints.ConsoleAuthorize = DefaultConsoleAuthorizeURL
	}
	if c.Endpoints.Token == "" {
		c.Endpoints.Token = DefaultTokenURL
	}
	if c.Endpoints.APIKey == "" {
		c.Endpoints.APIKey = DefaultAPIKeyURL
	}
	if c.Scopes.Subscription == "" {
		c.Scopes.Subscription = DefaultScope
	}
	if c.Scopes.Console == "" {
		c.Scopes.Console = DefaultScope
	}
	if c.RequestEncoding == "" {
		c.RequestEncoding = EncodingForm
	}
}

// ResolvedRedirectURI returns the redirect URI sent to the provider.
// RedirectURI wins over RedirectPort; with neither set the provider's
// copy-the-code page is used.
func (c *OAuthConfig) ResolvedRedirectURI() string {
	if uri := strings.TrimSpace(c.RedirectURI); uri != "" {
		return uri
	}
	if c.RedirectPort > 0 {
		return fmt.Sprintf("http://localhost:%d%s", c.RedirectPort, DefaultCallbackPath)
	}
	return DefaultRedirectURI
}

// Normalized returns a defaulted, validated copy of c.
func (c *OAuthConfig) Normalized() (OAuthConfig, error) {
	out := *c
	out.ApplyDefaults()
	if err := out.Validate(); err != nil {
		return OAuthConfig{}, err
	}
	return out, nil
}

// Validate checks the configuration for values that can never work.
func (c *OAuthConfig) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return &ValidationError{Field: "client-id", Reason: "must not be empty"}
	}
	if c.RedirectPort < 0 || c.RedirectPort > 65535 {
		return &ValidationError{Field: "redirect-port", Reason: "must be between 1 and 65535"}
	}
	if err := validateEndpoint("redirect-uri", c.ResolvedRedirectURI()); err != nil {
		return err
	}
	endpoints := []struct {
		field string
		value string
	}{
		{"endpoints.subscription-authorize", c.Endpoints.SubscriptionAuthorize},
		{"endpoints.console-authorize", c.Endpoints.ConsoleAuthorize},
		{"endpoints.token", c.Endpoints.Token},
		{"endpoints.api-key", c.Endpoints.APIKey},
	}
	for _, ep := range endpoints {
		if err := validateEndpoint(ep.field, ep.value); err != nil {
			return err
		}
	}
	switch c.RequestEncoding {
	case EncodingForm, EncodingJSON:
	default:
		return &ValidationError{Field: "request-encoding", Reason: fmt.Sprintf("unsupported value %q", c.RequestEncoding)}
	}
	return nil
}

func validateEndpoint(field, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Field: field, Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: field, Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &ValidationError{Field: field, Reason: "host is required"}
	}
	if u.Fragment != "" {
		return &ValidationError{Field: field, Reason: "must not contain a fragment"}
	}
	return nil
}

// IsLocalRedirect reports whether the resolved redirect URI targets this machine,
// which is required for the local callback listener.
func (c *OAuthConfig) IsLocalRedirect() bool {
	u, err := url.Parse(c.ResolvedRedirectURI())
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// RedirectListenPort returns the port the local callback listener should bind.
func (c *OAuthConfig) RedirectListenPort() (int, string, error) {
	u, err := url.Parse(c.ResolvedRedirectURI())
	if err != nil {
		return 0, "", err
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if p := u.Port(); p != "" {
		port, errAtoi := strconv.Atoi(p)
		if errAtoi != nil {
			return 0, "", errAtoi
		}
		return port, path, nil
	}
	if u.Scheme == "https" {
		return 443, path, nil
	}
	return 80, path, nil
}
