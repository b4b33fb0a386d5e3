package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// PlainFileStore keeps each value in its own plaintext file. It backs the
// non-sensitive metadata fields (org identifiers) where keychain-grade
// protection would only add friction.
type PlainFileStore struct {
	dir string
	mu  sync.Mutex
}

var _ Backend = (*PlainFileStore)(nil)

// NewPlainFileStore opens (creating if needed) a plaintext store rooted at dir.
func NewPlainFileStore(dir string) (*PlainFileStore, error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, storeDirMode); err != nil {
		return nil, fmt.Errorf("create metadata store directory: %w", err)
	}
	return &PlainFileStore{dir: dir}, nil
}

func (s *PlainFileStore) Set(key, value string) error {
	path, err := s.pathForKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(path, []byte(value), secretFileMode); err != nil {
		return fmt.Errorf("write metadata %q: %w", key, err)
	}
	return nil
}

func (s *PlainFileStore) Get(key string) (string, error) {
	path, err := s.pathForKey(key)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	data, err := os.ReadFile(path)
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read metadata %q: %w", key, err)
	}
	return string(data), nil
}

func (s *PlainFileStore) Delete(key string) error {
	path, err := s.pathForKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = os.Remove(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete metadata %q: %w", key, err)
	}
	return nil
}

func (s *PlainFileStore) pathForKey(key string) (string, error) {
	name, err := fileNameForKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}
