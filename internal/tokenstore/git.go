package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// GitConfig configures a git-backed store. With an empty Remote the repository
// stays local and every change is only committed.
type GitConfig struct {
	RepoDir  string
	Remote   string
	Username string
	Password string
}

// GitStore keeps records as JSON files in a git working tree and commits every change.
type GitStore struct {
	mu  sync.Mutex
	cfg GitConfig
}

// NewGitStore opens the repository in cfg.RepoDir, cloning Remote or initializing an
// empty repository when the directory has none yet.
func NewGitStore(cfg GitConfig) (*GitStore, error) {
	cfg.RepoDir = strings.TrimSpace(cfg.RepoDir)
	cfg.Remote = strings.TrimSpace(cfg.Remote)
	if cfg.RepoDir == "" {
		return nil, fmt.Errorf("git token store: repository path not configured")
	}
	s := &GitStore{cfg: cfg}
	if err := s.ensureRepository(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *GitStore) ensureRepository() error {
	gitDir := filepath.Join(s.cfg.RepoDir, ".git")
	if _, err := os.Stat(gitDir); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("git token store: stat repo: %w", err)
	}
	if err := os.MkdirAll(s.cfg.RepoDir, 0o700); err != nil {
		return fmt.Errorf("git token store: create repo dir: %w", err)
	}

	if s.cfg.Remote != "" {
		_, errClone := git.PlainClone(s.cfg.RepoDir, &git.CloneOptions{Auth: s.gitAuth(), URL: s.cfg.Remote})
		if errClone == nil {
			return nil
		}
		if !errors.Is(errClone, transport.ErrEmptyRemoteRepository) {
			return fmt.Errorf("git token store: clone remote: %w", errClone)
		}
		_ = os.RemoveAll(gitDir)
	}

	repo, err := git.PlainInit(s.cfg.RepoDir, false)
	if err != nil {
		return fmt.Errorf("git token store: init repo: %w", err)
	}
	if s.cfg.Remote != "" {
		if _, errCreate := repo.CreateRemote(&config.RemoteConfig{
			Name: "origin",
			URLs: []string{s.cfg.Remote},
		}); errCreate != nil && !errors.Is(errCreate, git.ErrRemoteExists) {
			return fmt.Errorf("git token store: configure remote: %w", errCreate)
		}
	}
	return nil
}

// Save writes rec to <repo>/<id>, commits it and pushes when a remote is configured.
func (s *GitStore) Save(_ context.Context, id string, rec *Record) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("git token store: record is nil")
	}
	rel, err := s.relativePath(id)
	if err != nil {
		return "", err
	}
	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("git token store: marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.cfg.RepoDir, rel)
	if err = os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("git token store: create dir: %w", err)
	}
	if err = os.WriteFile(path, raw, 0o600); err != nil {
		return "", fmt.Errorf("git token store: write file: %w", err)
	}
	if err = s.commitAndPushLocked(fmt.Sprintf("Update auth %s", rel), rel); err != nil {
		return "", err
	}
	return path, nil
}

// Load reads the record stored under id from the working tree.
func (s *GitStore) Load(_ context.Context, id string) (*Record, error) {
	rel, err := s.relativePath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.cfg.RepoDir, rel))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("git token store: read file: %w", err)
	}
	var rec Record
	if err = json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("git token store: unmarshal record: %w", err)
	}
	return &rec, nil
}

// Delete removes the record file and commits the removal.
func (s *GitStore) Delete(_ context.Context, id string) error {
	rel, err := s.relativePath(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = os.Remove(filepath.Join(s.cfg.RepoDir, rel)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("git token store: delete file: %w", err)
	}
	return s.commitAndPushLocked(fmt.Sprintf("Delete auth %s", rel), rel)
}

func (s *GitStore) relativePath(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("git token store: id is empty")
	}
	clean := filepath.Clean(filepath.FromSlash(id))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("git token store: id %q escapes the repository", id)
	}
	return filepath.ToSlash(clean), nil
}

func (s *GitStore) commitAndPushLocked(message string, relPaths ...string) error {
	repo, err := git.PlainOpen(s.cfg.RepoDir)
	if err != nil {
		return fmt.Errorf("git token store: open repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("git token store: worktree: %w", err)
	}
	for _, rel := range relPaths {
		if _, err = worktree.Add(rel); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("git token store: add %s: %w", rel, err)
			}
			if _, errRemove := worktree.Remove(rel); errRemove != nil && !errors.Is(errRemove, os.ErrNotExist) {
				return fmt.Errorf("git token store: remove %s: %w", rel, errRemove)
			}
		}
	}
	status, err := worktree.Status()
	if err != nil {
		return fmt.Errorf("git token store: status: %w", err)
	}
	if status.IsClean() {
		return nil
	}
	signature := &object.Signature{
		Name:  "claude-auth",
		Email: "claude-auth@local",
		When:  time.Now(),
	}
	if _, err = worktree.Commit(message, &git.CommitOptions{Author: signature}); err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return nil
		}
		return fmt.Errorf("git token store: commit: %w", err)
	}
	if s.cfg.Remote == "" {
		return nil
	}
	if err = repo.Push(&git.PushOptions{Auth: s.gitAuth()}); err != nil {
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil
		}
		return fmt.Errorf("git token store: push: %w", err)
	}
	return nil
}

func (s *GitStore) gitAuth() transport.AuthMethod {
	if s.cfg.Username == "" && s.cfg.Password == "" {
		return nil
	}
	user := s.cfg.Username
	if user == "" {
		user = "git"
	}
	return &http.BasicAuth{Username: user, Password: s.cfg.Password}
}
