package ports

import (
	"context"

	"github.com/deorganized/sessionkit/core"
)

// Store persists session material between runs: the token pair, the cached
// user snapshot, and the pending wallet address used by the setup flow.
//
// Reads fail soft: absent or corrupt data yields zero values, not errors,
// because the store is consulted on every boot before anything was validated.
// Errors are reserved for real I/O failures.
type Store interface {
	// StoreSession persists the token pair and the user snapshot as a unit.
	// A reader must never observe the tokens without the matching user.
	StoreSession(ctx context.Context, tokens core.Tokens, user core.User) error

	// StoreTokens replaces the token pair, leaving the user snapshot alone.
	// Used by refresh, where only the tokens change.
	StoreTokens(ctx context.Context, tokens core.Tokens) error

	// StoreUser replaces the cached user snapshot.
	StoreUser(ctx context.Context, user core.User) error

	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	User(ctx context.Context) (*core.User, error)

	// ClearAll removes the token pair, the user snapshot and any pending
	// wallet address.
	ClearAll(ctx context.Context) error

	// Pending wallet address: a separate, shorter-lived namespace scoped to
	// the signup flow.
	StorePendingWallet(ctx context.Context, address string) error
	PendingWallet(ctx context.Context) (string, error)
	ClearPendingWallet(ctx context.Context) error
}
