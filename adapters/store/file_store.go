package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/deorganized/sessionkit/core"
	"github.com/deorganized/sessionkit/ports"
)

// fileState is the on-disk shape of a persisted session.
type fileState struct {
	AccessToken   string     `json:"access_token,omitempty"`
	RefreshToken  string     `json:"refresh_token,omitempty"`
	User          *core.User `json:"user,omitempty"`
	PendingWallet string     `json:"pending_wallet_address,omitempty"`
}

// FileStore is a durable JSON-file implementation of the Store interface,
// the client-runtime analog of the browser's local storage. Every write
// rewrites the whole file via a temp file and rename, so a session is always
// observed as a unit. The file is created with 0600 since it holds bearer
// credentials.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file store at path, creating parent directories as
// needed.
func NewFileStore(path string) (ports.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// load reads the current state. A missing or corrupt file yields an empty
// state: the caller cannot act on storage it has not validated anyway.
func (s *FileStore) load() fileState {
	var state fileState

	data, err := os.ReadFile(s.path)
	if err != nil {
		return state
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return fileState{}
	}
	return state
}

func (s *FileStore) save(state fileState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (s *FileStore) StoreSession(ctx context.Context, tokens core.Tokens, user core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.load()
	state.AccessToken = tokens.Access
	state.RefreshToken = tokens.Refresh
	u := user
	state.User = &u
	return s.save(state)
}

func (s *FileStore) StoreTokens(ctx context.Context, tokens core.Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.load()
	state.AccessToken = tokens.Access
	state.RefreshToken = tokens.Refresh
	return s.save(state)
}

func (s *FileStore) StoreUser(ctx context.Context, user core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.load()
	u := user
	state.User = &u
	return s.save(state)
}

func (s *FileStore) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load().AccessToken, nil
}

func (s *FileStore) RefreshToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load().RefreshToken, nil
}

func (s *FileStore) User(ctx context.Context) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load().User, nil
}

func (s *FileStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

func (s *FileStore) StorePendingWallet(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.load()
	state.PendingWallet = address
	return s.save(state)
}

func (s *FileStore) PendingWallet(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load().PendingWallet, nil
}

func (s *FileStore) ClearPendingWallet(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.load()
	state.PendingWallet = ""
	return s.save(state)
}
