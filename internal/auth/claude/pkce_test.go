package claude

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestGeneratePKCECodes(t *testing.T) {
	t.Parallel()

	codes, err := GeneratePKCECodes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(codes.CodeVerifier) != 128 {
		t.Fatalf("expected 128-character verifier, got %d", len(codes.CodeVerifier))
	}
	if err = ValidateVerifier(codes.CodeVerifier); err != nil {
		t.Fatalf("expected generated verifier to be valid, got %v", err)
	}

	sum := sha256.Sum256([]byte(codes.CodeVerifier))
	want := base64.RawURLEncoding.EncodeToString(sum[:])
	if codes.CodeChallenge != want {
		t.Fatalf("expected challenge %q, got %q", want, codes.CodeChallenge)
	}
	if codes.CodeChallenge != oauth2.S256ChallengeFromVerifier(codes.CodeVerifier) {
		t.Fatalf("expected challenge to match oauth2.S256ChallengeFromVerifier")
	}
	if strings.ContainsAny(codes.CodeChallenge, "+/=") {
		t.Fatalf("expected url-safe unpadded challenge, got %q", codes.CodeChallenge)
	}
}

func TestGeneratePKCECodesAreUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		codes, err := GeneratePKCECodes()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, dup := seen[codes.CodeVerifier]; dup {
			t.Fatalf("duplicate verifier after %d generations", i)
		}
		seen[codes.CodeVerifier] = struct{}{}
	}
}

func TestGenerateState(t *testing.T) {
	t.Parallel()

	a, err := GenerateState()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := GenerateState()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a) != 43 {
		t.Fatalf("expected 43-character state, got %d", len(a))
	}
	if a == b {
		t.Fatalf("expected distinct states")
	}
}

func TestChallengeFromVerifierKnownVector(t *testing.T) {
	t.Parallel()

	// RFC 7636 appendix B.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	if got := ChallengeFromVerifier(verifier); got != "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM" {
		t.Fatalf("unexpected challenge %q", got)
	}
	if ChallengeFromVerifier(verifier) != ChallengeFromVerifier(verifier) {
		t.Fatalf("expected challenge derivation to be deterministic")
	}
}

func TestValidateVerifier(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		verifier string
		valid    bool
	}{
		{"empty", "", false},
		{"too short", strings.Repeat("a", 42), false},
		{"min length", strings.Repeat("a", 43), true},
		{"max length", strings.Repeat("a", 128), true},
		{"too long", strings.Repeat("a", 129), false},
		{"unreserved punctuation", strings.Repeat("a", 40) + "-._~", true},
		{"invalid character", strings.Repeat("a", 43) + "+", false},
	}
	for _, tc := range cases {
		err := ValidateVerifier(tc.verifier)
		if tc.valid && err != nil {
			t.Fatalf("%s: expected valid, got %v", tc.name, err)
		}
		if !tc.valid {
			if err == nil {
				t.Fatalf("%s: expected error", tc.name)
			}
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("%s: expected ErrInvalidArgument, got %v", tc.name, err)
			}
		}
	}
}

func TestRandomSourceFailure(t *testing.T) {
	original := randReader
	randReader = failingReader{}
	defer func() { randReader = original }()

	if _, err := GeneratePKCECodes(); !errors.Is(err, ErrRandomSourceUnavailable) {
		t.Fatalf("expected ErrRandomSourceUnavailable, got %v", err)
	}
	if _, err := GenerateState(); !errors.Is(err, ErrRandomSourceUnavailable) {
		t.Fatalf("expected ErrRandomSourceUnavailable, got %v", err)
	}

	auth, err := NewClaudeAuth(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err = auth.StartFlow(ModeSubscription); !errors.Is(err, ErrRandomSourceUnavailable) {
		t.Fatalf("expected StartFlow to surface ErrRandomSourceUnavailable, got %v", err)
	}
}
