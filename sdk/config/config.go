// Package config provides the public configuration API.
//
// It re-exports the configuration types and helpers so external projects can
// configure the OAuth client without importing internal packages.
package config

import internalconfig "github.com/router-for-me/claude-oauth/internal/config"

type SDKConfig = internalconfig.SDKConfig

type Config = internalconfig.Config

type OAuthConfig = internalconfig.OAuthConfig
type Endpoints = internalconfig.Endpoints
type Scopes = internalconfig.Scopes
type ValidationError = internalconfig.ValidationError

const (
	DefaultClientID                 = internalconfig.DefaultClientID
	DefaultRedirectURI              = internalconfig.DefaultRedirectURI
	DefaultSubscriptionAuthorizeURL = internalconfig.DefaultSubscriptionAuthorizeURL
	DefaultConsoleAuthorizeURL      = internalconfig.DefaultConsoleAuthorizeURL
	DefaultTokenURL                 = internalconfig.DefaultTokenURL
	DefaultAPIKeyURL                = internalconfig.DefaultAPIKeyURL
	DefaultScope                    = internalconfig.DefaultScope
	DefaultCallbackPath             = internalconfig.DefaultCallbackPath
	DefaultRequestTimeoutSeconds    = internalconfig.DefaultRequestTimeoutSeconds

	EncodingForm = internalconfig.EncodingForm
	EncodingJSON = internalconfig.EncodingJSON
)

func Default() *Config { return internalconfig.Default() }

func LoadConfig(configFile string) (*Config, error) { return internalconfig.LoadConfig(configFile) }

func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	return internalconfig.LoadConfigOptional(configFile, optional)
}
