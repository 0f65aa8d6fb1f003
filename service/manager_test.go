package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deorganized/sessionkit/adapters/store"
	"github.com/deorganized/sessionkit/core"
	"github.com/deorganized/sessionkit/ports"
)

const testAddr = "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"

// mintToken builds a structurally valid JWT whose exp lies at the given
// offset from now. The signature is irrelevant; only the payload is read.
func mintToken(t *testing.T, expIn time.Duration) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": testAddr,
		"exp": time.Now().Add(expIn).Unix(),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func testUser() core.User {
	return core.User{
		ID:            7,
		Username:      "satoshi",
		StacksAddress: testAddr,
		Role:          core.RoleCreator,
		IsVerified:    true,
	}
}

// fakeBackend is a scriptable ports.Backend that counts calls.
type fakeBackend struct {
	mu sync.Mutex

	checkResult *core.WalletCheck
	checkErr    error
	checkCalls  int

	setupResult *core.AuthResult
	setupErr    error
	setupCalls  int

	refreshResult *core.Tokens
	refreshErr    error
	refreshCalls  int
	refreshDelay  time.Duration
	lastRefresh   string

	userResult *core.User
	userErr    error
}

func (b *fakeBackend) CheckWalletOrLogin(ctx context.Context, address string) (*core.WalletCheck, error) {
	b.mu.Lock()
	b.checkCalls++
	b.mu.Unlock()
	return b.checkResult, b.checkErr
}

func (b *fakeBackend) CompleteSetup(ctx context.Context, req core.SetupRequest) (*core.AuthResult, error) {
	b.mu.Lock()
	b.setupCalls++
	b.mu.Unlock()
	return b.setupResult, b.setupErr
}

func (b *fakeBackend) Refresh(ctx context.Context, refreshToken string) (*core.Tokens, error) {
	b.mu.Lock()
	b.refreshCalls++
	b.lastRefresh = refreshToken
	delay := b.refreshDelay
	b.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if b.refreshErr != nil {
		return nil, b.refreshErr
	}
	tokens := *b.refreshResult
	return &tokens, nil
}

func (b *fakeBackend) CurrentUser(ctx context.Context, accessToken string) (*core.User, error) {
	return b.userResult, b.userErr
}

func (b *fakeBackend) refreshCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCalls
}

// fakeWallet is a scriptable ports.Wallet.
type fakeWallet struct {
	identity     core.WalletIdentity
	connectErr   error
	disconnected bool
}

func (w *fakeWallet) Connected(ctx context.Context) (bool, error) {
	return w.identity.Address != "" && !w.disconnected, nil
}

func (w *fakeWallet) Connect(ctx context.Context) (core.WalletIdentity, error) {
	if w.connectErr != nil {
		return core.WalletIdentity{}, w.connectErr
	}
	w.disconnected = false
	return w.identity, nil
}

func (w *fakeWallet) Disconnect(ctx context.Context) error {
	w.disconnected = true
	return nil
}

// recordingEvents captures published lifecycle events.
type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (e *recordingEvents) record(kind string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, kind)
}

func (e *recordingEvents) PublishEstablished(ctx context.Context, address string) error {
	e.record("established")
	return nil
}

func (e *recordingEvents) PublishRefreshed(ctx context.Context, address string) error {
	e.record("refreshed")
	return nil
}

func (e *recordingEvents) PublishEnded(ctx context.Context, address, reason string) error {
	e.record("ended:" + reason)
	return nil
}

func (e *recordingEvents) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

type fixture struct {
	manager *Manager
	store   ports.Store
	backend *fakeBackend
	wallet  *fakeWallet
	events  *recordingEvents
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   store.NewMemoryStore(),
		backend: &fakeBackend{},
		wallet:  &fakeWallet{identity: core.WalletIdentity{Address: testAddr}},
		events:  &recordingEvents{},
	}

	manager, err := NewManager(Options{
		Store:   f.store,
		Backend: f.backend,
		Wallet:  f.wallet,
		Events:  f.events,
	})
	require.NoError(t, err)
	f.manager = manager
	return f
}

func (f *fixture) seedSession(t *testing.T, access string) {
	t.Helper()
	err := f.store.StoreSession(context.Background(), core.Tokens{Access: access, Refresh: "ref-1"}, testUser())
	require.NoError(t, err)
}

func TestRestoreOptimisticIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, mintToken(t, time.Hour))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		state, err := f.manager.Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, core.StateAuthenticated, state)

		user := f.manager.CurrentUser()
		require.NotNil(t, user)
		assert.Equal(t, "satoshi", user.Username)
	}

	assert.Zero(t, f.backend.refreshCount(), "optimistic restore must make no network calls")
	assert.Zero(t, f.backend.checkCalls)
}

func TestRestoreExpiredTokenRefreshesOnce(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, mintToken(t, -time.Minute))
	f.backend.refreshResult = &core.Tokens{Access: mintToken(t, time.Hour), Refresh: "ref-2"}
	ctx := context.Background()

	state, err := f.manager.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.StateAuthenticated, state)
	assert.Equal(t, 1, f.backend.refreshCount())

	refresh, err := f.store.RefreshToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ref-2", refresh, "rotated refresh token must be persisted")
}

func TestRestoreRefreshFailureClearsEverything(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, mintToken(t, -time.Minute))
	require.NoError(t, f.store.StorePendingWallet(context.Background(), "SPLEFTOVER"))
	f.backend.refreshErr = &core.APIError{Status: http.StatusUnauthorized, Message: "token expired"}
	ctx := context.Background()

	state, err := f.manager.Restore(ctx)
	require.NoError(t, err, "a dead session is a state, not an error")
	assert.Equal(t, core.StateUnauthenticated, state)

	access, _ := f.store.AccessToken(ctx)
	refresh, _ := f.store.RefreshToken(ctx)
	user, _ := f.store.User(ctx)
	pending, _ := f.store.PendingWallet(ctx)
	assert.Empty(t, access)
	assert.Empty(t, refresh)
	assert.Nil(t, user)
	assert.Empty(t, pending, "pending wallet must not leak past a cleared session")

	assert.Contains(t, f.events.all(), "ended:refresh_failed")
}

func TestRestoreWithEmptyStore(t *testing.T) {
	f := newFixture(t)

	state, err := f.manager.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.StateUnauthenticated, state)
	assert.Zero(t, f.backend.refreshCount())
}

func TestConnectNewUserStoresOnlyPendingWallet(t *testing.T) {
	f := newFixture(t)
	f.backend.checkResult = &core.WalletCheck{IsNew: true}
	ctx := context.Background()

	result, err := f.manager.ConnectWallet(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.RouteSetup, result.Route)
	assert.Equal(t, core.StateUnauthenticated, f.manager.State())

	pending, err := f.store.PendingWallet(ctx)
	require.NoError(t, err)
	assert.Equal(t, testAddr, pending)

	access, _ := f.store.AccessToken(ctx)
	refresh, _ := f.store.RefreshToken(ctx)
	assert.Empty(t, access, "new-user branch must never store tokens")
	assert.Empty(t, refresh)
}

func TestConnectExistingUserEstablishesSession(t *testing.T) {
	f := newFixture(t)
	user := testUser()
	f.backend.checkResult = &core.WalletCheck{
		IsNew:  false,
		User:   &user,
		Tokens: &core.Tokens{Access: mintToken(t, time.Hour), Refresh: "ref-1"},
	}
	ctx := context.Background()

	result, err := f.manager.ConnectWallet(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.RouteHome, result.Route)
	require.NotNil(t, result.User)
	assert.Equal(t, core.StateAuthenticated, f.manager.State())

	stored, err := f.store.User(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "satoshi", stored.Username)

	assert.Contains(t, f.events.all(), "established")
}

func TestConnectBackendFailureLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t)
	f.backend.checkErr = &core.APIError{Status: http.StatusBadGateway}
	ctx := context.Background()

	_, err := f.manager.ConnectWallet(ctx)
	require.Error(t, err)
	assert.Equal(t, core.StateUnauthenticated, f.manager.State())

	access, _ := f.store.AccessToken(ctx)
	pending, _ := f.store.PendingWallet(ctx)
	assert.Empty(t, access)
	assert.Empty(t, pending)
}

func TestCompleteSetupClearsPendingWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.StorePendingWallet(ctx, testAddr))

	user := testUser()
	f.backend.setupResult = &core.AuthResult{
		User:   user,
		Tokens: core.Tokens{Access: mintToken(t, time.Hour), Refresh: "ref-1"},
	}

	created, err := f.manager.CompleteSetup(ctx, SetupForm{Role: core.RoleCreator, Username: "satoshi"})
	require.NoError(t, err)
	assert.Equal(t, "satoshi", created.Username)
	assert.Equal(t, core.StateAuthenticated, f.manager.State())

	pending, err := f.store.PendingWallet(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	access, err := f.store.AccessToken(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, access)
}

func TestCompleteSetupValidationErrorPreservesPendingWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.StorePendingWallet(ctx, testAddr))

	f.backend.setupErr = &core.ValidationError{Fields: map[string][]string{"username": {"already taken"}}}

	_, err := f.manager.CompleteSetup(ctx, SetupForm{Role: core.RoleUser, Username: "taken"})

	var valErr *core.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, map[string][]string{"username": {"already taken"}}, valErr.Fields)

	pending, err := f.store.PendingWallet(ctx)
	require.NoError(t, err)
	assert.Equal(t, testAddr, pending, "user must be able to retry the form")
	assert.Equal(t, core.StateUnauthenticated, f.manager.State())
}

func TestCompleteSetupWithoutPendingWallet(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.CompleteSetup(context.Background(), SetupForm{Role: core.RoleUser})
	assert.ErrorIs(t, err, core.ErrNoPendingWallet)
}

func TestValidAccessTokenReturnsStoredTokenWhenFresh(t *testing.T) {
	f := newFixture(t)
	access := mintToken(t, time.Hour)
	f.seedSession(t, access)

	got, err := f.manager.ValidAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, access, got)
	assert.Zero(t, f.backend.refreshCount())
}

func TestValidAccessTokenRefreshesExpiredToken(t *testing.T) {
	// The worked example: access token expired 10s ago, backend refreshes
	// without rotating. The refresh token must survive unchanged.
	f := newFixture(t)
	f.seedSession(t, mintToken(t, -10*time.Second))
	newAccess := mintToken(t, time.Hour)
	f.backend.refreshResult = &core.Tokens{Access: newAccess}
	ctx := context.Background()

	got, err := f.manager.ValidAccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, newAccess, got)
	assert.Equal(t, "ref-1", f.backend.lastRefresh)

	access, _ := f.store.AccessToken(ctx)
	refresh, _ := f.store.RefreshToken(ctx)
	assert.Equal(t, newAccess, access)
	assert.Equal(t, "ref-1", refresh, "unrotated refresh token must be retained")
}

func TestValidAccessTokenWithoutSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.ValidAccessToken(context.Background())
	assert.ErrorIs(t, err, core.ErrNoSession)
}

func TestValidAccessTokenRefreshFailure(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, mintToken(t, -time.Minute))
	f.backend.refreshErr = &core.APIError{Status: http.StatusUnauthorized}
	ctx := context.Background()

	_, err := f.manager.ValidAccessToken(ctx)
	assert.ErrorIs(t, err, core.ErrSessionExpired)

	access, _ := f.store.AccessToken(ctx)
	assert.Empty(t, access)
	assert.Equal(t, core.StateUnauthenticated, f.manager.State())
}

func TestConcurrentRefreshesCoalesce(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, mintToken(t, -time.Minute))
	f.backend.refreshResult = &core.Tokens{Access: mintToken(t, time.Hour)}
	f.backend.refreshDelay = 50 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.ValidAccessToken(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.backend.refreshCount(), "simultaneous callers must share one refresh")
}

func TestRefreshUserUpdatesSnapshot(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, mintToken(t, time.Hour))
	_, err := f.manager.Restore(context.Background())
	require.NoError(t, err)

	updated := testUser()
	updated.Bio = "now with a bio"
	f.backend.userResult = &updated

	user, err := f.manager.RefreshUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "now with a bio", user.Bio)

	cached := f.manager.CurrentUser()
	require.NotNil(t, cached)
	assert.Equal(t, "now with a bio", cached.Bio)

	stored, err := f.store.User(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "now with a bio", stored.Bio)
}

func TestRefreshUserUnauthorizedEndsSession(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, mintToken(t, time.Hour))
	_, err := f.manager.Restore(context.Background())
	require.NoError(t, err)

	f.backend.userErr = &core.APIError{Status: http.StatusUnauthorized}

	_, err = f.manager.RefreshUser(context.Background())
	assert.ErrorIs(t, err, core.ErrSessionExpired)
	assert.Equal(t, core.StateUnauthenticated, f.manager.State())

	access, _ := f.store.AccessToken(context.Background())
	assert.Empty(t, access)
	assert.Contains(t, f.events.all(), "ended:unauthorized")
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, mintToken(t, time.Hour))
	_, err := f.manager.Restore(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.manager.Logout(context.Background()))

	assert.Equal(t, core.StateUnauthenticated, f.manager.State())
	assert.Nil(t, f.manager.CurrentUser())
	assert.True(t, f.wallet.disconnected)

	access, _ := f.store.AccessToken(context.Background())
	assert.Empty(t, access)
	assert.Contains(t, f.events.all(), "ended:logout")
}

func TestRunRefreshesProactively(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, mintToken(t, -time.Minute))
	f.backend.refreshResult = &core.Tokens{Access: mintToken(t, time.Hour)}

	manager, err := NewManager(Options{
		Store:           f.store,
		Backend:         f.backend,
		RefreshInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	// The loop only refreshes a live session.
	user := testUser()
	manager.setSession(&user)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		manager.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return f.backend.refreshCount() >= 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}

func TestTransportInjectsBearerToken(t *testing.T) {
	f := newFixture(t)
	access := mintToken(t, time.Hour)
	f.seedSession(t, access)

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := f.manager.Client().Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer "+access, gotAuth)
}

func TestTransportFailsWithoutSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Client().Get("http://example.invalid/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNoSession))
}
