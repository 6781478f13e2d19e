// Package auth holds the admin's bearer token and cached profile.
//
// The token is the only shared mutable state in the process. It is mutated
// by login, logout, and the gateway client's 401 handling, so every store
// implementation must be safe for concurrent use.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var ErrNotLoggedIn = errors.New("auth: not logged in")

// Admin is the cached admin profile. It is a render-time convenience only;
// the backend remains the source of truth.
type Admin struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	LastLogin time.Time `json:"lastLogin,omitempty"`
}

// TokenStore persists the bearer token and cached admin profile.
type TokenStore interface {
	Token() string
	SetToken(token string) error
	Clear() error

	Admin() (*Admin, bool)
	SetAdmin(a *Admin) error
}

// MemoryStore is an in-process TokenStore. Used by tests and the portal
// daemon, which authenticates per boot rather than per operator.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
	admin *Admin
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *MemoryStore) SetToken(token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	s.token = ""
	s.admin = nil
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Admin() (*Admin, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.admin == nil {
		return nil, false
	}
	a := *s.admin
	return &a, true
}

func (s *MemoryStore) SetAdmin(a *Admin) error {
	s.mu.Lock()
	s.admin = a
	s.mu.Unlock()
	return nil
}

// fileState is the on-disk shape: the two local key-value entries the
// console keeps (token + cached profile), nothing else.
type fileState struct {
	Token string `json:"token,omitempty"`
	Admin *Admin `json:"admin,omitempty"`
}

// FileStore persists the token and profile to a JSON state file, so the
// operator CLI stays logged in across invocations.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by the given path. The file and its
// parent directory are created lazily on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return ""
	}
	return st.Token
}

func (s *FileStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, _ := s.read()
	st.Token = token
	return s.write(st)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(fileState{})
}

func (s *FileStore) Admin() (*Admin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil || st.Admin == nil {
		return nil, false
	}
	return st.Admin, true
}

func (s *FileStore) SetAdmin(a *Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, _ := s.read()
	st.Admin = a
	return s.write(st)
}

// read returns the current state, or a zero state if the file is missing.
func (s *FileStore) read() (fileState, error) {
	var st fileState
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return fileState{}, fmt.Errorf("auth: corrupt state file: %w", err)
	}
	return st, nil
}

func (s *FileStore) write(st fileState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("auth: create state dir: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	// Write-then-rename so a crash can't leave a half-written token.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("auth: write state file: %w", err)
	}
	return os.Rename(tmp, s.path)
}
