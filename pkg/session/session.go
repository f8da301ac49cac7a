// Package session persists the single bearer credential used against the
// Local Buyer Intelligence API. The dashboard kept it in browser-local
// storage under a fixed key; here it lives in a fixed file under the user
// config directory. At most one token exists at a time: setting a new one
// silently replaces the previous one.
package session

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	homedir "github.com/mitchellh/go-homedir"
)

const tokenFileName = "token"

// Store holds the current access credential. It is safe for concurrent use:
// an in-flight API call may read the token while a 401 on another call
// clears it, and both outcomes are acceptable.
type Store struct {
	mu    sync.Mutex
	path  string
	token string
}

// DefaultPath returns the fixed token location, ~/.config/lbi/token.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "lbi", tokenFileName), nil
}

// Open loads the store backed by the file at path. A missing file is not an
// error, it just means no session exists yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	s.token = strings.TrimSpace(string(data))
	return s, nil
}

// SetToken persists a new credential, replacing any previous one.
func (s *Store) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return err
	}
	s.token = token
	return nil
}

// Token returns the current credential, or "" when no session exists.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// IsAuthenticated reports whether a non-empty token is persisted. This is a
// presence check only: an expired-but-present token still reads as
// authenticated until an API call fails.
func (s *Store) IsAuthenticated() bool {
	return s.Token() != ""
}

// Clear drops the persisted token unconditionally. It never fails: a missing
// token file already is the state Clear establishes.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	_ = os.Remove(s.path)
}
