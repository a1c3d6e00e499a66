// Package misc holds small helpers for the CLI: parsing pasted OAuth callbacks,
// credential log lines and the embedded example configuration.
package misc

import (
	"fmt"
	"net/url"
	"strings"
)

// OAuthCallback captures the parsed OAuth callback parameters.
type OAuthCallback struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// RawResponse returns the "code#state" form expected by the token exchange,
// or the bare code when no state was present.
func (c *OAuthCallback) RawResponse() string {
	if c == nil {
		return ""
	}
	if c.State == "" {
		return c.Code
	}
	return c.Code + "#" + c.State
}

// ParseOAuthCallback extracts OAuth parameters from what a user pastes after login:
// a full callback URL, a bare query string, or the "code#state" value shown by the
// provider's code page. It returns nil when the input is empty.
func ParseOAuthCallback(input string) (*OAuthCallback, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, nil
	}

	if !strings.ContainsAny(trimmed, "/?=&:") {
		code, state, _ := strings.Cut(trimmed, "#")
		if code == "" {
			return nil, fmt.Errorf("callback missing code")
		}
		return &OAuthCallback{Code: code, State: state}, nil
	}

	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		if strings.HasPrefix(candidate, "?") {
			candidate = "http://localhost" + candidate
		} else if strings.ContainsAny(candidate, "/?#") || strings.Contains(candidate, ":") {
			candidate = "http://" + candidate
		} else if strings.Contains(candidate, "=") {
			candidate = "http://localhost/?" + candidate
		} else {
			return nil, fmt.Errorf("invalid callback URL")
		}
	}

	parsedURL, err := url.Parse(candidate)
	if err != nil {
		return nil, err
	}

	query := parsedURL.Query()
	code := strings.TrimSpace(query.Get("code"))
	state := strings.TrimSpace(query.Get("state"))
	errCode := strings.TrimSpace(query.Get("error"))
	errDesc := strings.TrimSpace(query.Get("error_description"))

	if parsedURL.Fragment != "" {
		if fragQuery, errFrag := url.ParseQuery(parsedURL.Fragment); errFrag == nil {
			if code == "" {
				code = strings.TrimSpace(fragQuery.Get("code"))
			}
			if state == "" {
				state = strings.TrimSpace(fragQuery.Get("state"))
			}
			if errCode == "" {
				errCode = strings.TrimSpace(fragQuery.Get("error"))
			}
			if errDesc == "" {
				errDesc = strings.TrimSpace(fragQuery.Get("error_description"))
			}
		}
		// "?code=abc#xyz": the fragment is the state itself.
		if code != "" && state == "" && !strings.Contains(parsedURL.Fragment, "=") {
			state = strings.TrimSpace(parsedURL.Fragment)
		}
	}

	if code != "" && state == "" && strings.Contains(code, "#") {
		code, state, _ = strings.Cut(code, "#")
	}

	if errCode == "" && errDesc != "" {
		errCode = errDesc
		errDesc = ""
	}

	if code == "" && errCode == "" {
		return nil, fmt.Errorf("callback URL missing code")
	}

	return &OAuthCallback{
		Code:             code,
		State:            state,
		Error:            errCode,
		ErrorDescription: errDesc,
	}, nil
}
