package tokenstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/router-for-me/claude-oauth/internal/auth/claude"
	"github.com/zalando/go-keyring"
)

func sampleRecord() *Record {
	expires := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	return NewRecord(claude.ModeAPIKeyCreation, &claude.TokenSet{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    expires,
		Account:      claude.Account{EmailAddress: "dev@example.com"},
	}, expires.Add(-time.Hour))
}

func TestRecordID(t *testing.T) {
	t.Parallel()

	if got := RecordID(sampleRecord()); got != "claude-dev@example.com.json" {
		t.Fatalf("unexpected id %q", got)
	}
	if got := RecordID(NewRecord(claude.ModeSubscription, nil, time.Now())); got != "claude-subscription.json" {
		t.Fatalf("unexpected id %q", got)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewFileStore(dir)
	rec := sampleRecord()

	path, err := store.Save(context.Background(), RecordID(rec), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != filepath.Join(dir, "claude-dev@example.com.json") {
		t.Fatalf("unexpected path %q", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 permissions, got %o", perm)
	}

	loaded, err := store.Load(context.Background(), RecordID(rec))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.AccessToken != "at" || loaded.Mode != "console" || !loaded.ExpiresAt.Equal(rec.ExpiresAt) {
		t.Fatalf("unexpected record %+v", loaded)
	}

	if err = store.Delete(context.Background(), RecordID(rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err = store.Load(context.Background(), RecordID(rec)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err = store.Delete(context.Background(), RecordID(rec)); err != nil {
		t.Fatalf("expected deleting a missing record to succeed, got %v", err)
	}
}

func TestFileStoreRequiresDirectory(t *testing.T) {
	t.Parallel()

	if _, err := NewFileStore("").Save(context.Background(), "claude.json", sampleRecord()); err == nil {
		t.Fatalf("expected error without base dir")
	}
	abs := filepath.Join(t.TempDir(), "tokens.json")
	if _, err := NewFileStore("").Save(context.Background(), abs, sampleRecord()); err != nil {
		t.Fatalf("expected absolute path to work without base dir, got %v", err)
	}
}

func TestKeyringStoreRoundTrip(t *testing.T) {
	keyring.MockInit()

	store := NewKeyringStore("")
	rec := sampleRecord()
	locator, err := store.Save(context.Background(), "dev", rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if locator != "keyring://claude-oauth/dev" {
		t.Fatalf("unexpected locator %q", locator)
	}
	loaded, err := store.Load(context.Background(), "dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.RefreshToken != "rt" || loaded.Account.EmailAddress != "dev@example.com" {
		t.Fatalf("unexpected record %+v", loaded)
	}
	if err = store.Delete(context.Background(), "dev"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err = store.Load(context.Background(), "dev"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
