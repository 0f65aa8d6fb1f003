// Package service holds the session manager orchestrating wallet connection,
// backend authentication, and token refresh.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/deorganized/sessionkit/core"
	"github.com/deorganized/sessionkit/ports"
	"github.com/deorganized/sessionkit/token"
)

// DefaultRefreshInterval is how often the background loop checks whether the
// access token needs a proactive refresh.
const DefaultRefreshInterval = 5 * time.Minute

// Refresh triggers, recorded in metrics and logs.
const (
	triggerRestore  = "restore"
	triggerInterval = "interval"
	triggerOnDemand = "on_demand"
)

// Session end reasons carried on the ended event.
const (
	ReasonLogout        = "logout"
	ReasonRefreshFailed = "refresh_failed"
	ReasonUnauthorized  = "unauthorized"
)

// Options configures a Manager. Store and Backend are required; Wallet is
// required only when ConnectWallet and Logout's wallet disconnect are used;
// Events and Metrics may be nil.
type Options struct {
	Store   ports.Store
	Backend ports.Backend
	Wallet  ports.Wallet
	Events  ports.EventPublisher
	Logger  *slog.Logger
	Metrics *Metrics

	// ExpiryBuffer widens the "expiring" window so requests never go out
	// with a token that dies mid-flight. Defaults to token.DefaultExpiryBuffer.
	ExpiryBuffer time.Duration

	// RefreshInterval is the background check cadence used by Run.
	RefreshInterval time.Duration
}

// Manager owns the authentication session: it restores state at startup,
// drives the wallet connect and setup flows, refreshes tokens proactively
// and on demand, and is the only sanctioned source of bearer tokens.
//
// It replaces the scattered per-page auth wiring with one injectable object:
// every collaborator arrives through Options, so tests substitute fakes
// without touching real storage or network.
type Manager struct {
	store   ports.Store
	backend ports.Backend
	wallet  ports.Wallet
	events  ports.EventPublisher
	logger  *slog.Logger
	metrics *Metrics

	expiryBuffer    time.Duration
	refreshInterval time.Duration

	// Concurrent on-demand refreshes coalesce into one backend call. With
	// rotation enabled a duplicate refresh could strand one caller with a
	// dead token, so coalescing is correctness here, not just thrift.
	refreshGroup singleflight.Group

	mu       sync.RWMutex
	state    core.AuthState
	user     *core.User
	identity *core.WalletIdentity
}

// ConnectResult tells the caller where to route after a wallet connection.
type ConnectResult struct {
	Route    core.Route
	Identity core.WalletIdentity
	// User is set only when Route is RouteHome.
	User *core.User
}

// SetupForm is the profile payload collected by the setup form. The wallet
// address is supplied by the manager from the pending-wallet stash.
type SetupForm struct {
	Role      core.Role
	Username  string
	Bio       string
	Website   string
	Twitter   string
	Instagram string
	YouTube   string
}

// NewManager creates a session manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("session manager requires a store")
	}
	if opts.Backend == nil {
		return nil, errors.New("session manager requires a backend client")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ExpiryBuffer <= 0 {
		opts.ExpiryBuffer = token.DefaultExpiryBuffer
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}

	return &Manager{
		store:           opts.Store,
		backend:         opts.Backend,
		wallet:          opts.Wallet,
		events:          opts.Events,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
		expiryBuffer:    opts.ExpiryBuffer,
		refreshInterval: opts.RefreshInterval,
		state:           core.StateUnauthenticated,
	}, nil
}

// State returns the manager's current state.
func (m *Manager) State() core.AuthState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Authenticated reports whether an established session is held.
func (m *Manager) Authenticated() bool {
	return m.State() == core.StateAuthenticated
}

// CurrentUser returns the cached user snapshot, or nil. The snapshot is for
// rendering only; authorization always happens server-side via the bearer
// token.
func (m *Manager) CurrentUser() *core.User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// WalletIdentity returns the connected wallet identity, or nil before any
// connection in this process.
func (m *Manager) WalletIdentity() *core.WalletIdentity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.identity == nil {
		return nil
	}
	id := *m.identity
	return &id
}

// Restore reconstructs auth state from the store at startup. It must finish
// before anything else consults the manager: no component may observe a
// session the restore has not validated.
//
// A stored, unexpired token restores optimistically with zero network calls.
// An expired token triggers exactly one refresh attempt; if that fails the
// store is fully cleared and the user starts over. Restore only returns an
// error for store I/O failures; a dead session is a state, not an error.
func (m *Manager) Restore(ctx context.Context) (core.AuthState, error) {
	m.setState(core.StateRestoring)

	access, err := m.store.AccessToken(ctx)
	if err != nil {
		m.setState(core.StateUnauthenticated)
		return core.StateUnauthenticated, fmt.Errorf("read access token: %w", err)
	}
	user, err := m.store.User(ctx)
	if err != nil {
		m.setState(core.StateUnauthenticated)
		return core.StateUnauthenticated, fmt.Errorf("read stored user: %w", err)
	}

	if access == "" || user == nil {
		m.metrics.IncRestore("none")
		m.setState(core.StateUnauthenticated)
		return core.StateUnauthenticated, nil
	}

	if !token.IsExpired(access, m.expiryBuffer) {
		m.setSession(user)
		m.metrics.IncRestore("cached")
		m.logger.Debug("session restored from storage", "username", user.Username)
		return core.StateAuthenticated, nil
	}

	m.logger.Info("access token expired at startup, attempting refresh")
	if _, err := m.refresh(ctx, triggerRestore); err != nil {
		m.metrics.IncRestore("expired")
		m.logger.Warn("session expired, starting unauthenticated", "error", err)
		return core.StateUnauthenticated, nil
	}

	m.setSession(user)
	m.metrics.IncRestore("refreshed")
	m.logger.Info("session restored via token refresh", "username", user.Username)
	return core.StateAuthenticated, nil
}

// ConnectWallet drives the full connect flow: wallet connection, then the
// new-versus-existing check. For a new wallet the address is stashed as
// pending and the caller routes to setup; for an existing account the
// session is established. Failures leave the store untouched.
func (m *Manager) ConnectWallet(ctx context.Context) (*ConnectResult, error) {
	if m.wallet == nil {
		return nil, errors.New("no wallet connector configured")
	}

	identity, err := m.wallet.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect wallet: %w", err)
	}
	return m.AuthenticateAddress(ctx, identity)
}

// AuthenticateAddress runs the new-versus-existing branch for an address the
// caller already obtained from a wallet.
func (m *Manager) AuthenticateAddress(ctx context.Context, identity core.WalletIdentity) (*ConnectResult, error) {
	if identity.Address == "" {
		return nil, core.ErrWalletNotConnected
	}

	m.mu.Lock()
	id := identity
	m.identity = &id
	m.mu.Unlock()

	m.logger.Info("checking wallet against backend", "address", identity.Address)

	check, err := m.backend.CheckWalletOrLogin(ctx, identity.Address)
	if err != nil {
		m.metrics.IncLogin("error")
		return nil, err
	}

	if check.IsNew {
		if err := m.store.StorePendingWallet(ctx, identity.Address); err != nil {
			return nil, fmt.Errorf("stash pending wallet: %w", err)
		}
		m.metrics.IncLogin("new")
		m.logger.Info("new wallet, routing to setup", "address", identity.Address)
		return &ConnectResult{Route: core.RouteSetup, Identity: identity}, nil
	}

	if check.User == nil || check.Tokens == nil {
		m.metrics.IncLogin("error")
		return nil, errors.New("invalid server response: existing user without user or tokens")
	}

	if err := m.store.StoreSession(ctx, *check.Tokens, *check.User); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	m.setSession(check.User)
	m.metrics.IncLogin("existing")
	m.publishEstablished(ctx, identity.Address)
	m.logger.Info("existing user signed in", "username", check.User.Username)

	return &ConnectResult{Route: core.RouteHome, Identity: identity, User: check.User}, nil
}

// CompleteSetup creates the account for the pending wallet address. On
// success the session is established and the pending address cleared. A
// *core.ValidationError passes through untouched and the pending address
// survives so the user can correct the form and retry.
func (m *Manager) CompleteSetup(ctx context.Context, form SetupForm) (*core.User, error) {
	pending, err := m.store.PendingWallet(ctx)
	if err != nil {
		return nil, fmt.Errorf("read pending wallet: %w", err)
	}
	if pending == "" {
		return nil, core.ErrNoPendingWallet
	}

	result, err := m.backend.CompleteSetup(ctx, core.SetupRequest{
		WalletAddress: pending,
		Role:          form.Role,
		Username:      form.Username,
		Bio:           form.Bio,
		Website:       form.Website,
		Twitter:       form.Twitter,
		Instagram:     form.Instagram,
		YouTube:       form.YouTube,
	})
	if err != nil {
		return nil, err
	}

	if err := m.store.StoreSession(ctx, result.Tokens, result.User); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	if err := m.store.ClearPendingWallet(ctx); err != nil {
		m.logger.Warn("failed to clear pending wallet", "error", err)
	}

	m.setSession(&result.User)
	m.publishEstablished(ctx, pending)
	m.logger.Info("account created", "username", result.User.Username, "role", result.User.Role)

	return &result.User, nil
}

// ValidAccessToken is the only sanctioned path to a bearer token. A valid
// stored token returns immediately; an expiring one triggers a silent,
// coalesced refresh. core.ErrNoSession means the caller is unauthenticated;
// core.ErrSessionExpired means the session just died and the UI should
// prompt reconnection.
func (m *Manager) ValidAccessToken(ctx context.Context) (string, error) {
	access, err := m.store.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("read access token: %w", err)
	}
	if access == "" {
		return "", core.ErrNoSession
	}

	if !token.IsExpired(access, m.expiryBuffer) {
		return access, nil
	}

	newAccess, err := m.refresh(ctx, triggerOnDemand)
	if err != nil {
		return "", fmt.Errorf("%w: %s", core.ErrSessionExpired, err)
	}
	return newAccess, nil
}

// RefreshUser re-fetches the account snapshot behind the session. A
// 401-class rejection is session death, not a display error: the store is
// cleared and core.ErrSessionExpired returned.
func (m *Manager) RefreshUser(ctx context.Context) (*core.User, error) {
	access, err := m.ValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	user, err := m.backend.CurrentUser(ctx, access)
	if err != nil {
		if core.IsUnauthorized(err) {
			m.logger.Warn("current-user fetch rejected, ending session")
			m.endSession(ctx, ReasonUnauthorized)
			return nil, core.ErrSessionExpired
		}
		return nil, err
	}

	if err := m.store.StoreUser(ctx, *user); err != nil {
		return nil, fmt.Errorf("persist user: %w", err)
	}

	m.mu.Lock()
	u := *user
	m.user = &u
	m.mu.Unlock()

	return user, nil
}

// Logout ends the session from any state: wallet disconnected, store
// cleared, in-memory state reset. A failing wallet disconnect is logged but
// never blocks the local logout.
func (m *Manager) Logout(ctx context.Context) error {
	if m.wallet != nil {
		if err := m.wallet.Disconnect(ctx); err != nil {
			m.logger.Warn("wallet disconnect failed", "error", err)
		}
	}
	return m.endSession(ctx, ReasonLogout)
}

// Run drives the proactive refresh loop until ctx is cancelled. Call it
// after Restore; it refreshes the access token whenever a check finds it
// inside the expiry buffer, and a failed refresh silently ends the session,
// which the UI detects through State.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.State() != core.StateAuthenticated {
				continue
			}

			access, err := m.store.AccessToken(ctx)
			if err != nil || access == "" {
				continue
			}
			if !token.IsExpired(access, m.expiryBuffer) {
				continue
			}

			if _, err := m.refresh(ctx, triggerInterval); err != nil {
				m.logger.Warn("proactive refresh failed, session ended", "error", err)
				continue
			}
			m.logger.Debug("proactive token refresh completed")
		}
	}
}

// refresh exchanges the stored refresh token for a new access token.
// Concurrent callers coalesce into a single backend call. Any failure ends
// the session: the store is fully cleared so no half-valid state survives.
func (m *Manager) refresh(ctx context.Context, trigger string) (string, error) {
	access, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		refreshToken, err := m.store.RefreshToken(ctx)
		if err != nil {
			return "", fmt.Errorf("read refresh token: %w", err)
		}
		if refreshToken == "" {
			m.endSession(ctx, ReasonRefreshFailed)
			return "", core.ErrNoSession
		}

		if m.State() == core.StateAuthenticated {
			m.setState(core.StateRefreshing)
		}

		start := time.Now()
		tokens, err := m.backend.Refresh(ctx, refreshToken)
		m.metrics.ObserveRefreshLatency(time.Since(start))
		if err != nil {
			m.metrics.IncRefresh("failure", trigger)
			m.endSession(ctx, ReasonRefreshFailed)
			return "", err
		}

		// Rotation is optional: keep the old refresh token unless the
		// backend issued a replacement.
		if tokens.Refresh == "" {
			tokens.Refresh = refreshToken
		}

		if err := m.store.StoreTokens(ctx, *tokens); err != nil {
			m.endSession(ctx, ReasonRefreshFailed)
			return "", fmt.Errorf("persist tokens: %w", err)
		}

		if m.State() == core.StateRefreshing {
			m.setState(core.StateAuthenticated)
		}
		m.metrics.IncRefresh("success", trigger)
		m.publishRefreshed(ctx)

		return tokens.Access, nil
	})
	if err != nil {
		return "", err
	}
	return access.(string), nil
}

// endSession clears everything: stored tokens, user, pending wallet, and
// in-memory state. It is the single path out of an established session.
func (m *Manager) endSession(ctx context.Context, reason string) error {
	address := m.sessionAddress()

	if err := m.store.ClearAll(ctx); err != nil {
		return fmt.Errorf("clear session store: %w", err)
	}

	m.mu.Lock()
	m.state = core.StateUnauthenticated
	m.user = nil
	m.mu.Unlock()

	if m.events != nil && address != "" {
		if err := m.events.PublishEnded(ctx, address, reason); err != nil {
			m.logger.Warn("failed to publish session-ended event", "error", err)
		}
	}
	return nil
}

func (m *Manager) setState(state core.AuthState) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

func (m *Manager) setSession(user *core.User) {
	m.mu.Lock()
	u := *user
	m.user = &u
	m.state = core.StateAuthenticated
	m.mu.Unlock()
}

// sessionAddress is the best-known wallet address for event payloads.
func (m *Manager) sessionAddress() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.user != nil {
		return m.user.StacksAddress
	}
	if m.identity != nil {
		return m.identity.Address
	}
	return ""
}

func (m *Manager) publishEstablished(ctx context.Context, address string) {
	if m.events == nil {
		return
	}
	if err := m.events.PublishEstablished(ctx, address); err != nil {
		m.logger.Warn("failed to publish session-established event", "error", err)
	}
}

func (m *Manager) publishRefreshed(ctx context.Context) {
	if m.events == nil {
		return
	}
	if err := m.events.PublishRefreshed(ctx, m.sessionAddress()); err != nil {
		m.logger.Warn("failed to publish session-refreshed event", "error", err)
	}
}
