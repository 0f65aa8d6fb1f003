package ports

import (
	"context"

	"github.com/deorganized/sessionkit/core"
)

// Wallet wraps the external wallet-connection provider.
//
// The provider's finish callback is a hint, not a guarantee: implementations
// must positively confirm the connection (typically by polling Connected for
// a bounded duration) before treating it as established.
type Wallet interface {
	// Connected reports whether a wallet session currently exists.
	Connected(ctx context.Context) (bool, error)

	// Connect starts the external connection flow and blocks until the wallet
	// yields an address, the flow is cancelled, or a bounded wait elapses
	// (core.ErrConnectTimeout).
	Connect(ctx context.Context) (core.WalletIdentity, error)

	// Disconnect revokes the local wallet-session linkage. It does not end
	// the backend session; the session manager handles that separately.
	Disconnect(ctx context.Context) error
}
