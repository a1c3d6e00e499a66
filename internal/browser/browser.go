// Package browser opens the authorization URL in the user's default web browser.
package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"

	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
)

// linuxBrowsers are tried in order when open-golang cannot launch a browser.
var linuxBrowsers = []string{"xdg-open", "x-www-browser", "www-browser", "firefox", "chromium", "google-chrome"}

// runOpen is open.Run, replaceable in tests.
var runOpen = open.Run

// SystemOpener opens URLs with the operating system's browser.
type SystemOpener struct{}

// Open implements the opener collaborator used by the login flow.
func (SystemOpener) Open(rawURL string) error {
	return OpenURL(rawURL)
}

// OpenURL opens the specified URL in the default web browser.
// It first attempts to use a platform-agnostic library and falls back to
// platform-specific commands if that fails. Only http and https URLs are opened.
//
// Parameters:
//   - rawURL: The URL to open.
//
// Returns:
//   - An error if the URL cannot be opened, otherwise nil.
func OpenURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("refusing to open non-http url")
	}

	if err = runOpen(rawURL); err == nil {
		log.Debug("Successfully opened URL using open-golang library")
		return nil
	}

	log.Debugf("open-golang failed: %v, trying platform-specific commands", err)
	return openURLPlatformSpecific(rawURL)
}

// openURLPlatformSpecific opens a URL using OS-specific commands.
func openURLPlatformSpecific(rawURL string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", rawURL)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL)
	case "linux":
		for _, browser := range linuxBrowsers {
			if _, err := exec.LookPath(browser); err == nil {
				cmd = exec.Command(browser, rawURL)
				break
			}
		}
		if cmd == nil {
			return fmt.Errorf("no suitable browser found on Linux system")
		}
	default:
		return fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	log.Debugf("Running command: %s", cmd.Path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start browser command: %w", err)
	}
	go func() { _ = cmd.Wait() }()

	log.Debug("Successfully opened URL using platform-specific command")
	return nil
}

// IsAvailable reports whether a command to open a web browser exists on this system.
// It does not launch anything.
func IsAvailable() bool {
	switch runtime.GOOS {
	case "darwin":
		_, err := exec.LookPath("open")
		return err == nil
	case "windows":
		_, err := exec.LookPath("rundll32")
		return err == nil
	case "linux":
		for _, browser := range linuxBrowsers {
			if _, err := exec.LookPath(browser); err == nil {
				return true
			}
		}
		return false
	default:
		return false
	}
}
