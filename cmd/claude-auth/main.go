// Package main provides the claude-auth command, which logs in to Anthropic with
// OAuth 2.0 and PKCE, refreshes stored tokens and mints Console API keys.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/router-for-me/claude-oauth/internal/auth/claude"
	"github.com/router-for-me/claude-oauth/internal/buildinfo"
	"github.com/router-for-me/claude-oauth/internal/cmd"
	"github.com/router-for-me/claude-oauth/internal/config"
	"github.com/router-for-me/claude-oauth/internal/logging"
	"github.com/router-for-me/claude-oauth/internal/misc"
	"github.com/router-for-me/claude-oauth/internal/util"
	log "github.com/sirupsen/logrus"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const defaultAuthDir = "~/.claude-oauth"

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string
	var modeName string
	var noBrowser bool
	var callback bool
	var oauthCallbackPort int
	var createAPIKey bool
	var refreshID string
	var storeKind string
	var output string
	var copyURL bool
	var async bool
	var debug bool
	var initConfig string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "Configure File Path (defaults to ./config.yaml when present)")
	flag.StringVar(&modeName, "mode", "subscription", "Authorization mode: subscription or console")
	flag.BoolVar(&noBrowser, "no-browser", false, "Don't open browser automatically for OAuth")
	flag.BoolVar(&callback, "callback", false, "Run a local callback listener (requires a localhost redirect)")
	flag.IntVar(&oauthCallbackPort, "oauth-callback-port", 0, "Use http://localhost:<port>/callback as the redirect")
	flag.BoolVar(&createAPIKey, "create-api-key", false, "Mint an API key after a console login")
	flag.StringVar(&refreshID, "refresh", "", "Refresh the stored record with this id instead of logging in")
	flag.StringVar(&storeKind, "store", "file", "Token store: file, keyring, postgres, object or git")
	flag.StringVar(&output, "out", "", "Record id or path to write (defaults to claude-<email>.json)")
	flag.BoolVar(&copyURL, "copy-url", false, "Copy the authorization URL to the clipboard")
	flag.BoolVar(&async, "async", false, "Use the non-blocking client")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.StringVar(&initConfig, "init-config", "", "Write an example config to this path and exit")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("claude-auth Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return 0
	}

	if initConfig != "" {
		if err := misc.WriteConfigTemplate(initConfig, false); err != nil {
			log.Errorf("failed to write config template: %v", err)
			return 1
		}
		fmt.Printf("Example configuration written to %s\n", initConfig)
		return 0
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		return 1
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	optional := configPath == ""
	if optional {
		configPath = filepath.Join(wd, "config.yaml")
	}
	cfg, err := config.LoadConfigOptional(configPath, optional)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return 1
	}
	if err = cfg.ApplyEnvOverrides(); err != nil {
		log.Errorf("failed to apply environment overrides: %v", err)
		return 1
	}
	if debug {
		cfg.Debug = true
	}
	if oauthCallbackPort > 0 {
		cfg.OAuth.RedirectURI = ""
		cfg.OAuth.RedirectPort = oauthCallbackPort
	}
	if cfg.AuthDir == "" {
		cfg.AuthDir = defaultAuthDir
	}
	if cfg.AuthDir, err = util.ResolveAuthDir(cfg.AuthDir); err != nil {
		log.Errorf("failed to resolve auth directory: %v", err)
		return 1
	}

	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		return 1
	}
	util.SetLogLevel(cfg)
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	log.Debugf("claude-auth Version: %s, Commit: %s, BuiltAt: %s", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	mode, err := claude.ParseMode(modeName)
	if err != nil {
		log.Error(claude.GetUserFriendlyMessage(err))
		return 2
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := cmd.NewStore(ctx, storeKind, cfg)
	if err != nil {
		log.Errorf("failed to initialize token store: %v", err)
		return 2
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	options := &cmd.LoginOptions{
		Mode:         mode,
		NoBrowser:    noBrowser,
		Callback:     callback,
		CreateAPIKey: createAPIKey,
		Async:        async,
		CopyURL:      copyURL,
		Output:       output,
	}

	if refreshID != "" {
		if _, err = cmd.DoClaudeRefresh(ctx, cfg, store, refreshID, options); err != nil {
			return reportError("Claude token refresh failed", err)
		}
		fmt.Println("Claude token refresh successful!")
		return 0
	}

	savedPath, err := cmd.DoClaudeLogin(ctx, cfg, store, options)
	if err != nil {
		return reportError("Claude authentication failed", err)
	}
	if savedPath != "" {
		fmt.Printf("Authentication saved to %s\n", savedPath)
	}
	fmt.Println("Claude authentication successful!")
	return 0
}

// reportError logs err for the user and picks the exit code.
func reportError(prefix string, err error) int {
	log.Errorf("%s: %v", prefix, err)
	fmt.Println(claude.GetUserFriendlyMessage(err))
	if errors.Is(err, claude.ErrPortInUse) {
		return claude.ErrPortInUse.Code
	}
	return 1
}
