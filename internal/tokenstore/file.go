package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the pair as JSON with owner-only permissions.
// Writes go to a temp file that is renamed over the target, so readers never see a partial pair.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) SetTokens(_ context.Context, p Pair) error {
	if p.AccessToken == "" {
		return ErrEmptyAccessToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.RefreshToken == "" {
		cur, err := s.read()
		if err != nil {
			return err
		}
		p.RefreshToken = cur.RefreshToken
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("tokenstore: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return fmt.Errorf("tokenstore: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: chmod: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenstore: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenstore: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("tokenstore: rename: %w", err)
	}
	return nil
}

func (s *FileStore) AccessToken(context.Context) (string, error) {
	p, err := s.load()
	return p.AccessToken, err
}

func (s *FileStore) RefreshToken(context.Context) (string, error) {
	p, err := s.load()
	return p.RefreshToken, err
}

func (s *FileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("tokenstore: remove: %w", err)
	}
	return nil
}

func (s *FileStore) load() (Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// read loads the pair; callers hold s.mu.
func (s *FileStore) read() (Pair, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Pair{}, nil
		}
		return Pair{}, fmt.Errorf("tokenstore: read: %w", err)
	}
	var p Pair
	if err := json.Unmarshal(b, &p); err != nil {
		return Pair{}, fmt.Errorf("tokenstore: decode %s: %w", s.path, err)
	}
	return p, nil
}
