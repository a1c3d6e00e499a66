package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore persists records as JSON files under a base directory.
type FileStore struct {
	mu      sync.Mutex
	baseDir string
}

// NewFileStore creates a store rooted at baseDir.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: strings.TrimSpace(baseDir)}
}

// Save writes rec to the file for id with 0600 permissions and returns its path.
func (s *FileStore) Save(_ context.Context, id string, rec *Record) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("token filestore: record is nil")
	}
	path, err := s.resolvePath(id)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("token filestore: create dir failed: %w", err)
	}
	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("token filestore: marshal record failed: %w", err)
	}
	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, raw, 0o600); err != nil {
		return "", fmt.Errorf("token filestore: write file failed: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("token filestore: replace file failed: %w", err)
	}
	return path, nil
}

// Load reads the record stored for id.
func (s *FileStore) Load(_ context.Context, id string) (*Record, error) {
	path, err := s.resolvePath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("token filestore: read file failed: %w", err)
	}
	var rec Record
	if err = json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("token filestore: unmarshal record failed: %w", err)
	}
	return &rec, nil
}

// Delete removes the file for id. A missing file is not an error.
func (s *FileStore) Delete(_ context.Context, id string) error {
	path, err := s.resolvePath(id)
	if err != nil {
		return err
	}
	if err = os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("token filestore: delete failed: %w", err)
	}
	return nil
}

// resolvePath accepts an absolute path, a path with separators, or a bare file name
// relative to the base directory.
func (s *FileStore) resolvePath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("token filestore: id is empty")
	}
	if filepath.IsAbs(id) || strings.ContainsRune(id, os.PathSeparator) {
		return filepath.Clean(id), nil
	}
	if s.baseDir == "" {
		return "", fmt.Errorf("token filestore: directory not configured")
	}
	return filepath.Join(s.baseDir, id), nil
}
