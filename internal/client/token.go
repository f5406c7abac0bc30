package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TokenFile keeps the access token on disk. A zero path keeps it in memory.
type TokenFile struct {
	path string

	mu  sync.Mutex
	mem string
}

func NewTokenFile(path string) *TokenFile {
	return &TokenFile{path: path}
}

func (t *TokenFile) Path() string { return t.path }

// Load returns the stored token or "" when none is stored.
func (t *TokenFile) Load() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.path == "" {
		return t.mem, nil
	}
	raw, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("client: read token: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func (t *TokenFile) Save(token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mem = token
	if t.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o700); err != nil {
		return fmt.Errorf("client: token dir: %w", err)
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("client: write token: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("client: write token: %w", err)
	}
	return nil
}

func (t *TokenFile) Remove() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mem = ""
	if t.path == "" {
		return nil
	}
	if err := os.Remove(t.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("client: remove token: %w", err)
	}
	return nil
}
