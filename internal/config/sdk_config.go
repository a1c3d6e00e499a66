// Package config provides configuration management for the Claude OAuth client.
// It handles loading and parsing YAML configuration files, applies defaults and
// environment overrides, and provides structured access to OAuth endpoints,
// redirect settings, logging options and outbound proxy settings.
package config

// SDKConfig holds the transport-level settings shared by every outbound request.
type SDKConfig struct {
	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	// Supported schemes are http, https and socks5.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	// DisableTLSFingerprint switches the Anthropic HTTP client from the utls
	// Firefox fingerprint back to the standard library TLS stack.
	DisableTLSFingerprint bool `yaml:"disable-tls-fingerprint" json:"disable-tls-fingerprint"`

	// RequestTimeoutSeconds bounds a single token/api-key round trip.
	// <= 0 leaves the timeout to the caller's context. Default is 30.
	RequestTimeoutSeconds int `yaml:"request-timeout-seconds,omitempty" json:"request-timeout-seconds,omitempty"`
}
