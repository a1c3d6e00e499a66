// Package tokenstore persists token sets for the CLI. The OAuth library itself never
// stores anything; this is the host side of that contract.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/router-for-me/claude-oauth/internal/auth/claude"
)

// ErrNotFound is returned by Load when no record exists under the id.
var ErrNotFound = errors.New("tokenstore: record not found")

// Record is what the CLI persists after a login, refresh or API key creation.
type Record struct {
	Type string `json:"type"`
	Mode string `json:"mode"`
	claude.TokenSet
	APIKey      string    `json:"api_key,omitempty"`
	LastRefresh time.Time `json:"last_refresh"`
}

// NewRecord wraps a token set obtained in mode.
func NewRecord(mode claude.Mode, tokens *claude.TokenSet, now time.Time) *Record {
	rec := &Record{Type: "claude", Mode: mode.String(), LastRefresh: now}
	if tokens != nil {
		rec.TokenSet = *tokens
	}
	return rec
}

// Store saves and loads records by id.
type Store interface {
	Save(ctx context.Context, id string, rec *Record) (string, error)
	Load(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
}

// RecordID derives the default id for a record: claude-<email>.json, or claude-<mode>.json
// when the provider did not report an email.
func RecordID(rec *Record) string {
	if rec == nil {
		return "claude.json"
	}
	name := strings.TrimSpace(rec.Account.EmailAddress)
	if name == "" {
		name = rec.Mode
	}
	if name == "" {
		return "claude.json"
	}
	name = strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(name)
	return fmt.Sprintf("claude-%s.json", name)
}
