package claude

import (
	"crypto/subtle"
	"fmt"
	"strings"
)

// ParseAuthorizationResponse splits a raw "code#state" (or bare "code") value on
// the first '#'. Both segments are returned verbatim.
func ParseAuthorizationResponse(raw string) (*AuthorizationResponse, error) {
	code, state, hasState := strings.Cut(raw, "#")
	if code == "" {
		return nil, NewAuthenticationError(ErrMalformedResponse, fmt.Errorf("authorization code is empty"))
	}
	return &AuthorizationResponse{
		Code:     code,
		State:    state,
		HasState: hasState,
	}, nil
}

// VerifyState binds the response to the flow and returns the state to send with the
// code exchange.
//
// An embedded state must equal expected byte for byte; an empty expected value never
// matches an embedded state. A bare code passes only when expected is empty, or when
// allowBareCode is set, in which case expected is used as the flow's state.
func (r *AuthorizationResponse) VerifyState(expected string, allowBareCode bool) (string, error) {
	if r.HasState {
		if !constantTimeEqual(r.State, expected) || expected == "" {
			return "", NewAuthenticationError(ErrStateMismatch, fmt.Errorf("state mismatch - possible CSRF attack"))
		}
		return r.State, nil
	}
	if expected == "" || allowBareCode {
		return expected, nil
	}
	return "", NewAuthenticationError(ErrStateMismatch, fmt.Errorf("authorization response carries no state to verify"))
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
