package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the service name records are stored under.
const DefaultKeyringService = "claude-oauth"

// KeyringStore persists records in the operating system's credential store.
// Each record is one JSON secret keyed by its id.
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a store for service; empty uses DefaultKeyringService.
func NewKeyringStore(service string) *KeyringStore {
	if strings.TrimSpace(service) == "" {
		service = DefaultKeyringService
	}
	return &KeyringStore{service: service}
}

// Save stores rec under id and returns a keyring:// locator for logs.
func (s *KeyringStore) Save(_ context.Context, id string, rec *Record) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("token keyring: record is nil")
	}
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("token keyring: id is empty")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("token keyring: marshal record failed: %w", err)
	}
	if err = keyring.Set(s.service, id, string(raw)); err != nil {
		return "", fmt.Errorf("token keyring: store failed: %w", err)
	}
	return fmt.Sprintf("keyring://%s/%s", s.service, id), nil
}

// Load reads the record stored under id.
func (s *KeyringStore) Load(_ context.Context, id string) (*Record, error) {
	secret, err := keyring.Get(s.service, id)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("token keyring: read failed: %w", err)
	}
	var rec Record
	if err = json.Unmarshal([]byte(secret), &rec); err != nil {
		return nil, fmt.Errorf("token keyring: unmarshal record failed: %w", err)
	}
	return &rec, nil
}

// Delete removes the record under id. A missing record is not an error.
func (s *KeyringStore) Delete(_ context.Context, id string) error {
	if err := keyring.Delete(s.service, id); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("token keyring: delete failed: %w", err)
	}
	return nil
}
