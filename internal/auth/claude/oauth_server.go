package claude

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/claude-oauth/internal/config"
	"github.com/router-for-me/claude-oauth/internal/logging"
	log "github.com/sirupsen/logrus"
)

const (
	callbackStateMismatch = "state_mismatch"
	callbackMalformedCode = "malformed_code"
)

// CallbackResult contains the result of the OAuth callback.
// It holds either the authorization code and state for successful authentication
// or an error code if the authentication failed.
type CallbackResult struct {
	// Code is the authorization code received from the OAuth provider
	Code string
	// State is the state parameter used to prevent CSRF attacks
	State string
	// Error contains the OAuth error code if the flow failed
	Error string
	// ErrorDescription is the provider's description of Error, if any
	ErrorDescription string
}

// RawResponse joins code and state into the "code#state" form accepted by the exchange.
func (r *CallbackResult) RawResponse() string {
	if r.State == "" {
		return r.Code
	}
	return r.Code + "#" + r.State
}

// OAuthServer handles the local HTTP server for OAuth callbacks.
// It listens on the loopback interface for the provider's redirect and captures the
// parameters needed to complete the flow. A zero port picks a free one.
type OAuthServer struct {
	// server is the underlying HTTP server instance
	server *http.Server
	// port is the port number on which the server listens
	port int
	// path is the callback path taken from the redirect URI
	path string
	// expectedState is compared against the callback's state
	expectedState string
	// resultChan is a channel for sending OAuth results
	resultChan chan *CallbackResult
	// errorChan is a channel for sending server errors
	errorChan chan error
	// mu is a mutex for protecting server state
	mu sync.Mutex
	// running indicates whether the server is currently running
	running bool
}

// NewOAuthServer creates a new OAuth callback server.
//
// Parameters:
//   - port: The port number on which the server should listen
//   - path: The callback path, e.g. "/callback"
//   - expectedState: The state of the flow being completed
//
// Returns:
//   - *OAuthServer: A new OAuthServer instance
func NewOAuthServer(port int, path, expectedState string) *OAuthServer {
	if path == "" {
		path = config.DefaultCallbackPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &OAuthServer{
		port:          port,
		path:          path,
		expectedState: expectedState,
		resultChan:    make(chan *CallbackResult, 1),
		errorChan:     make(chan error, 1),
	}
}

// NewOAuthServerFromConfig derives port and path from the configured redirect URI,
// which must point at localhost.
func NewOAuthServerFromConfig(cfg *config.OAuthConfig, expectedState string) (*OAuthServer, error) {
	if cfg == nil || !cfg.IsLocalRedirect() {
		return nil, NewAuthenticationError(ErrInvalidConfig, fmt.Errorf("callback listener requires a localhost redirect uri"))
	}
	port, path, err := cfg.RedirectListenPort()
	if err != nil {
		return nil, NewAuthenticationError(ErrInvalidConfig, err)
	}
	return NewOAuthServer(port, path, expectedState), nil
}

// Start binds the loopback port and begins serving callbacks.
//
// Returns:
//   - error: ErrPortInUse if the port is taken, ErrServerStartFailed otherwise
func (s *OAuthServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return NewAuthenticationError(ErrServerStartFailed, fmt.Errorf("server is already running"))
	}

	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(s.port)))
	if err != nil {
		if isAddrInUse(err) {
			return NewAuthenticationError(ErrPortInUse, err)
		}
		return NewAuthenticationError(ErrServerStartFailed, err)
	}
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	}

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger(), logging.GinLogrusRecovery())
	engine.GET(s.path, s.handleCallback)
	engine.GET("/favicon.ico", func(c *gin.Context) {
		logging.SkipGinRequestLogging(c)
		c.Status(http.StatusNoContent)
	})

	s.server = &http.Server{
		Handler:      engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.running = true

	srv := s.server
	go func() {
		if errServe := srv.Serve(listener); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			select {
			case s.errorChan <- NewAuthenticationError(ErrServerStartFailed, errServe):
			default:
			}
		}
	}()

	log.Debugf("OAuth callback server listening on 127.0.0.1:%d%s", s.port, s.path)
	return nil
}

// Stop gracefully stops the OAuth callback server.
//
// Parameters:
//   - ctx: The context for controlling the shutdown process
//
// Returns:
//   - error: An error if the server fails to stop gracefully
func (s *OAuthServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.server == nil {
		return nil
	}

	log.Debug("Stopping OAuth callback server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(shutdownCtx)
	s.running = false
	s.server = nil

	return err
}

// WaitForCallback blocks until the callback arrives, the server fails, or ctx ends.
// Provider errors on the redirect are returned as *OAuthError, a state mismatch as
// ErrStateMismatch and a code containing '#' as ErrMalformedResponse; in every case the result is still returned for inspection.
func (s *OAuthServer) WaitForCallback(ctx context.Context) (*CallbackResult, error) {
	select {
	case result := <-s.resultChan:
		switch {
		case result.Error == callbackStateMismatch:
			return result, NewAuthenticationError(ErrStateMismatch, fmt.Errorf("callback state does not match the flow"))
		case result.Error == callbackMalformedCode:
			return result, NewAuthenticationError(ErrMalformedResponse, fmt.Errorf("callback code contains '#'"))
		case result.Error != "":
			return result, NewOAuthError(result.Error, result.ErrorDescription, http.StatusBadRequest)
		}
		return result, nil
	case err := <-s.errorChan:
		return nil, err
	case <-ctx.Done():
		return nil, NewAuthenticationError(ErrCallbackTimeout, ctx.Err())
	}
}

// Port returns the bound port once started.
func (s *OAuthServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// IsRunning returns whether the server is currently running.
func (s *OAuthServer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *OAuthServer) handleCallback(c *gin.Context) {
	log.Debug("Received OAuth callback")

	code := strings.TrimSpace(c.Query("code"))
	state := strings.TrimSpace(c.Query("state"))
	errorParam := strings.TrimSpace(c.Query("error"))

	if errorParam != "" {
		log.Errorf("OAuth error received: %s", errorParam)
		s.sendResult(&CallbackResult{Error: errorParam, ErrorDescription: c.Query("error_description")})
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8", []byte(renderFailurePage("OAuth error: "+errorParam)))
		return
	}

	if code == "" {
		log.Error("No authorization code received")
		s.sendResult(&CallbackResult{Error: "no_code"})
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8", []byte(renderFailurePage("No authorization code received")))
		return
	}

	if strings.Contains(code, "#") {
		log.Error("OAuth callback code contains '#'")
		s.sendResult(&CallbackResult{Error: callbackMalformedCode})
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8", []byte(renderFailurePage("Malformed authorization code")))
		return
	}

	if s.expectedState != "" && !constantTimeEqual(state, s.expectedState) {
		log.Error("OAuth callback state mismatch")
		s.sendResult(&CallbackResult{Error: callbackStateMismatch})
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8", []byte(renderFailurePage("State parameter mismatch")))
		return
	}

	s.sendResult(&CallbackResult{Code: code, State: state})
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(LoginSuccessHtml))
}

// sendResult sends the OAuth result to the waiting channel without blocking the handler.
// Only the first callback is kept.
func (s *OAuthServer) sendResult(result *CallbackResult) {
	select {
	case s.resultChan <- result:
		log.Debug("OAuth result sent to channel")
	default:
		log.Warn("OAuth result channel is full, result dropped")
	}
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE) || strings.Contains(strings.ToLower(err.Error()), "address already in use")
}
