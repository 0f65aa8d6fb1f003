package core

// AuthState is the session manager's externally visible state.
type AuthState string

const (
	// StateUnauthenticated means no session is held. The UI should offer
	// wallet connection.
	StateUnauthenticated AuthState = "unauthenticated"

	// StateRestoring means the startup restore sequence is still running.
	// No component may treat the session as established until it concludes.
	StateRestoring AuthState = "restoring"

	// StateAuthenticated means a token pair and user snapshot are held.
	StateAuthenticated AuthState = "authenticated"

	// StateRefreshing means a token refresh is in flight for an otherwise
	// established session.
	StateRefreshing AuthState = "refreshing"
)

// Route tells the caller where to send the user after a wallet connection.
type Route string

const (
	// RouteSetup means the wallet is new: the pending address is stashed and
	// the profile-setup form should be shown.
	RouteSetup Route = "setup"

	// RouteHome means the wallet belongs to an existing account and the
	// session is established.
	RouteHome Route = "home"
)
