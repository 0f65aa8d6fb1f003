package store

import (
	"context"
	"sync"

	"github.com/deorganized/sessionkit/core"
	"github.com/deorganized/sessionkit/ports"
)

// MemoryStore is an in-memory implementation of the Store interface. Sessions
// held in it do not survive a restart; it exists for tests and for embedders
// that manage persistence themselves.
type MemoryStore struct {
	mu      sync.RWMutex
	access  string
	refresh string
	user    *core.User
	pending string
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() ports.Store {
	return &MemoryStore{}
}

// StoreSession persists the token pair and user snapshot under one lock.
func (s *MemoryStore) StoreSession(ctx context.Context, tokens core.Tokens, user core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = tokens.Access
	s.refresh = tokens.Refresh
	u := user
	s.user = &u
	return nil
}

// StoreTokens replaces the token pair only.
func (s *MemoryStore) StoreTokens(ctx context.Context, tokens core.Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = tokens.Access
	s.refresh = tokens.Refresh
	return nil
}

// StoreUser replaces the cached user snapshot.
func (s *MemoryStore) StoreUser(ctx context.Context, user core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := user
	s.user = &u
	return nil
}

// AccessToken returns the stored access token, or "" when none is held.
func (s *MemoryStore) AccessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access, nil
}

// RefreshToken returns the stored refresh token, or "" when none is held.
func (s *MemoryStore) RefreshToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh, nil
}

// User returns a copy of the cached user snapshot, or nil when none is held.
func (s *MemoryStore) User(ctx context.Context) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return nil, nil
	}
	u := *s.user
	return &u, nil
}

// ClearAll wipes tokens, user and pending wallet.
func (s *MemoryStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = ""
	s.refresh = ""
	s.user = nil
	s.pending = ""
	return nil
}

// StorePendingWallet stashes the wallet address awaiting setup.
func (s *MemoryStore) StorePendingWallet(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = address
	return nil
}

// PendingWallet returns the stashed wallet address, or "" when none is held.
func (s *MemoryStore) PendingWallet(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending, nil
}

// ClearPendingWallet drops the stashed wallet address.
func (s *MemoryStore) ClearPendingWallet(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = ""
	return nil
}
