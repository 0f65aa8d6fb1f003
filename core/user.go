package core

// Role is the account role assigned at setup time.
type Role string

const (
	RoleUser    Role = "user"
	RoleCreator Role = "creator"
)

// Valid reports whether the role is one the backend accepts.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleCreator
}

// User is a snapshot of the authenticated account as returned by the backend.
// It is cached locally for instant rendering and is never authoritative for
// authorization decisions: every privileged call re-validates via the bearer token.
type User struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	StacksAddress  string `json:"stacks_address"`
	Role           Role   `json:"role"`
	Bio            string `json:"bio,omitempty"`
	Website        string `json:"website,omitempty"`
	Twitter        string `json:"twitter,omitempty"`
	Instagram      string `json:"instagram,omitempty"`
	YouTube        string `json:"youtube,omitempty"`
	ProfilePicture string `json:"profile_picture,omitempty"`
	CoverPhoto     string `json:"cover_photo,omitempty"`
	IsVerified     bool   `json:"is_verified"`
	IsStaff        bool   `json:"is_staff"`
	DateJoined     string `json:"date_joined"`
	FollowerCount  int    `json:"follower_count,omitempty"`
	FollowingCount int    `json:"following_count,omitempty"`
}

// Tokens is the access/refresh token pair issued by the backend. Both are
// opaque to the client; the access token payload is decoded only to read its
// expiry claim.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// WalletCheck is the result of the wallet-login-or-check call. User and Tokens
// are present only when IsNew is false.
type WalletCheck struct {
	IsNew  bool    `json:"is_new"`
	User   *User   `json:"user,omitempty"`
	Tokens *Tokens `json:"tokens,omitempty"`
}

// AuthResult is the response to a completed setup: the freshly created account
// and its first token pair.
type AuthResult struct {
	User   User   `json:"user"`
	Tokens Tokens `json:"tokens"`
}

// SetupRequest is the profile payload submitted from the setup form. Role is
// required; everything else is optional.
type SetupRequest struct {
	WalletAddress string `json:"wallet_address"`
	Role          Role   `json:"role"`
	Username      string `json:"username,omitempty"`
	Bio           string `json:"bio,omitempty"`
	Website       string `json:"website,omitempty"`
	Twitter       string `json:"twitter,omitempty"`
	Instagram     string `json:"instagram,omitempty"`
	YouTube       string `json:"youtube,omitempty"`
}

// WalletIdentity is what a completed wallet connection yields: the Stacks
// address plus an optional human-readable BNS name.
type WalletIdentity struct {
	Address string `json:"address"`
	BNSName string `json:"bns_name,omitempty"`
}
