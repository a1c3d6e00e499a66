package browser

import "testing"

func TestOpenURLRejectsNonHTTP(t *testing.T) {
	for _, raw := range []string{"file:///etc/passwd", "javascript:alert(1)", "not a url", "https://"} {
		if err := OpenURL(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestSystemOpenerUsesOpenLibrary(t *testing.T) {
	var opened string
	original := runOpen
	runOpen = func(input string) error {
		opened = input
		return nil
	}
	t.Cleanup(func() { runOpen = original })

	if err := (SystemOpener{}).Open("https://claude.ai/oauth/authorize?code=true"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opened != "https://claude.ai/oauth/authorize?code=true" {
		t.Fatalf("expected url to be passed through, got %q", opened)
	}
}
