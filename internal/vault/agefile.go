package vault

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"filippo.io/age"
)

const (
	storeDirMode   = 0o700
	secretFileMode = 0o600
	identityFile   = "identity.txt"
)

// AgeFileStore keeps each secret in its own file, encrypted at rest with an
// age X25519 identity generated on first use. The identity lives next to
// the ciphertext with owner-only permissions; it stands in for OS keychain
// access on platforms without one.
type AgeFileStore struct {
	dir      string
	mu       sync.Mutex
	identity *age.X25519Identity
}

var _ Backend = (*AgeFileStore)(nil)

// NewAgeFileStore opens (creating if needed) an encrypted store rooted at dir.
func NewAgeFileStore(dir string) (*AgeFileStore, error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, storeDirMode); err != nil {
		return nil, fmt.Errorf("create secret store directory: %w", err)
	}

	identity, err := loadOrCreateIdentity(filepath.Join(dir, identityFile))
	if err != nil {
		return nil, err
	}

	return &AgeFileStore{dir: dir, identity: identity}, nil
}

func loadOrCreateIdentity(path string) (*age.X25519Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		identity, parseErr := age.ParseX25519Identity(strings.TrimSpace(string(data)))
		if parseErr != nil {
			return nil, fmt.Errorf("parse store identity: %w", parseErr)
		}
		return identity, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read store identity: %w", err)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generate store identity: %w", err)
	}
	if err := os.WriteFile(path, []byte(identity.String()+"\n"), secretFileMode); err != nil {
		return nil, fmt.Errorf("write store identity: %w", err)
	}
	return identity, nil
}

func (s *AgeFileStore) Set(key, value string) error {
	path, err := s.pathForKey(key)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.identity.Recipient())
	if err != nil {
		return fmt.Errorf("encrypt secret %q: %w", key, err)
	}
	if _, err := io.WriteString(w, value); err != nil {
		return fmt.Errorf("encrypt secret %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("encrypt secret %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(path, buf.Bytes(), secretFileMode); err != nil {
		return fmt.Errorf("write secret %q: %w", key, err)
	}
	return nil
}

func (s *AgeFileStore) Get(key string) (string, error) {
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
		return "", fmt.Errorf("read secret %q: %w", key, err)
	}

	r, err := age.Decrypt(bytes.NewReader(data), s.identity)
	if err != nil {
		return "", fmt.Errorf("decrypt secret %q: %w", key, err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decrypt secret %q: %w", key, err)
	}
	return string(plaintext), nil
}

func (s *AgeFileStore) Delete(key string) error {
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
		return fmt.Errorf("delete secret %q: %w", key, err)
	}
	return nil
}

func (s *AgeFileStore) pathForKey(key string) (string, error) {
	name, err := fileNameForKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name+".age"), nil
}

// fileNameForKey rejects keys that would escape the store directory.
func fileNameForKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", errors.New("secret key is empty")
	}
	if strings.ContainsAny(trimmed, "/\\") || trimmed == "." || trimmed == ".." {
		return "", fmt.Errorf("invalid secret key %q", key)
	}
	return trimmed, nil
}
