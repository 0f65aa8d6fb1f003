package ports

import (
	"context"

	"github.com/deorganized/sessionkit/core"
)

// Backend is the Deorganized REST API surface the session manager depends on.
// Non-2xx responses surface as *core.APIError; setup rejections with a
// field-keyed body surface as *core.ValidationError.
type Backend interface {
	// CheckWalletOrLogin asks the backend whether the wallet address is known.
	// For a new wallet the result carries IsNew only; for an existing account
	// it carries the user and a fresh token pair.
	CheckWalletOrLogin(ctx context.Context, address string) (*core.WalletCheck, error)

	// CompleteSetup creates the account for a pending wallet address.
	CompleteSetup(ctx context.Context, req core.SetupRequest) (*core.AuthResult, error)

	// Refresh exchanges a refresh token for a new access token. The returned
	// Refresh field is empty unless the backend rotated the refresh token;
	// the caller keeps the old one in that case.
	Refresh(ctx context.Context, refreshToken string) (*core.Tokens, error)

	// CurrentUser fetches the account behind the bearer token.
	CurrentUser(ctx context.Context, accessToken string) (*core.User, error)
}
