package claude

import (
	"errors"
	"testing"
)

func TestParseAuthorizationResponse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw      string
		code     string
		state    string
		hasState bool
	}{
		{"abc123#xyz789", "abc123", "xyz789", true},
		{"abc123", "abc123", "", false},
		{"abc#", "abc", "", true},
		{"abc#x#y", "abc", "x#y", true},
		{" abc #xyz", " abc ", "xyz", true},
	}
	for _, tc := range cases {
		got, err := ParseAuthorizationResponse(tc.raw)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.raw, err)
		}
		if got.Code != tc.code || got.State != tc.state || got.HasState != tc.hasState {
			t.Fatalf("%q: expected (%q, %q, %t), got (%q, %q, %t)", tc.raw, tc.code, tc.state, tc.hasState, got.Code, got.State, got.HasState)
		}
	}
}

func TestParseAuthorizationResponseEmptyCode(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "#xyz"} {
		if _, err := ParseAuthorizationResponse(raw); !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("%q: expected ErrMalformedResponse, got %v", raw, err)
		}
	}
}

func TestVerifyState(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		raw       string
		expected  string
		allowBare bool
		wantState string
		wantErr   bool
	}{
		{name: "matching state", raw: "abc#xyz", expected: "xyz", wantState: "xyz"},
		{name: "mismatched state", raw: "abc#xyz", expected: "different", wantErr: true},
		{name: "embedded state without expected", raw: "abc#xyz", expected: "", wantErr: true},
		{name: "empty embedded state", raw: "abc#", expected: "xyz", wantErr: true},
		{name: "bare code without expected", raw: "abc", expected: "", wantState: ""},
		{name: "bare code with expected", raw: "abc", expected: "xyz", wantErr: true},
		{name: "bare code allowed", raw: "abc", expected: "xyz", allowBare: true, wantState: "xyz"},
		{name: "allow bare does not relax mismatch", raw: "abc#evil", expected: "xyz", allowBare: true, wantErr: true},
	}
	for _, tc := range cases {
		parsed, err := ParseAuthorizationResponse(tc.raw)
		if err != nil {
			t.Fatalf("%s: unexpected parse error: %v", tc.name, err)
		}
		state, err := parsed.VerifyState(tc.expected, tc.allowBare)
		if tc.wantErr {
			if !errors.Is(err, ErrStateMismatch) {
				t.Fatalf("%s: expected ErrStateMismatch, got %v", tc.name, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if state != tc.wantState {
			t.Fatalf("%s: expected state %q, got %q", tc.name, tc.wantState, state)
		}
	}
}
