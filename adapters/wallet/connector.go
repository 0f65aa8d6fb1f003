// Package wallet adapts the external Stacks wallet bridge to the Wallet port.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/deorganized/sessionkit/core"
	"github.com/deorganized/sessionkit/ports"
)

const (
	// DefaultPollInterval and DefaultMaxPollAttempts bound the confirmation
	// poll after a connect is initiated. The bridge's finish callback does
	// not always fire, so the poll is the authoritative fallback; at the
	// defaults the flow is abandoned after 60s.
	DefaultPollInterval    = 2 * time.Second
	DefaultMaxPollAttempts = 30

	callbackPath = "/wallet/callback"
)

// Connector drives a wallet connection through a local wallet bridge: the
// bridge pops the wallet UI, confirms back to a loopback callback server, and
// exposes a session endpoint the connector polls as a fallback.
type Connector struct {
	bridgeURL    string
	callbackAddr string
	appName      string
	http         *http.Client
	bns          *BNSResolver
	logger       *slog.Logger

	pollInterval time.Duration
	maxAttempts  int
}

// Options tunes a Connector beyond the required bridge URL.
type Options struct {
	// CallbackAddr is the loopback listen address for the finish callback,
	// "127.0.0.1:0" by default (ephemeral port).
	CallbackAddr string
	// AppName is shown by the wallet UI when asking the user to approve.
	AppName string
	// BNS resolves human-readable names for connected addresses; nil skips
	// resolution.
	BNS *BNSResolver
	// HTTPClient overrides the default client (15s timeout).
	HTTPClient *http.Client
	Logger     *slog.Logger

	PollInterval    time.Duration
	MaxPollAttempts int
}

// NewConnector creates a connector for the bridge at bridgeURL.
func NewConnector(bridgeURL string, opts Options) ports.Wallet {
	if opts.CallbackAddr == "" {
		opts.CallbackAddr = "127.0.0.1:0"
	}
	if opts.AppName == "" {
		opts.AppName = "Deorganized"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxPollAttempts <= 0 {
		opts.MaxPollAttempts = DefaultMaxPollAttempts
	}

	return &Connector{
		bridgeURL:    strings.TrimRight(bridgeURL, "/"),
		callbackAddr: opts.CallbackAddr,
		appName:      opts.AppName,
		http:         opts.HTTPClient,
		bns:          opts.BNS,
		logger:       opts.Logger,
		pollInterval: opts.PollInterval,
		maxAttempts:  opts.MaxPollAttempts,
	}
}

type bridgeSession struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address,omitempty"`
}

// Connected implements ports.Wallet.
func (c *Connector) Connected(ctx context.Context) (bool, error) {
	session, err := c.session(ctx)
	if err != nil {
		return false, err
	}
	return session.Connected && session.Address != "", nil
}

// Connect implements ports.Wallet. It initiates the bridge flow and then
// waits on two signals at once: the finish callback and a bounded poll of
// the bridge session. Whichever yields an address first wins; if neither
// does before the poll budget runs out, core.ErrConnectTimeout is returned
// and no timer leaks.
func (c *Connector) Connect(ctx context.Context) (core.WalletIdentity, error) {
	// Already-connected wallets short-circuit the whole dance.
	if session, err := c.session(ctx); err == nil && session.Connected && session.Address != "" {
		return c.identity(ctx, session.Address), nil
	}

	state := uuid.New().String()
	addressCh := make(chan string, 1)

	srv, callbackURL, err := c.startCallbackServer(state, addressCh)
	if err != nil {
		return core.WalletIdentity{}, err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := c.initiate(ctx, callbackURL, state); err != nil {
		return core.WalletIdentity{}, err
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < c.maxAttempts; {
		select {
		case <-ctx.Done():
			return core.WalletIdentity{}, ctx.Err()

		case address := <-addressCh:
			c.logger.Debug("wallet callback fired", "address", address)
			return c.identity(ctx, address), nil

		case <-ticker.C:
			attempt++
			session, err := c.session(ctx)
			if err != nil {
				c.logger.Debug("bridge session poll failed", "attempt", attempt, "error", err)
				continue
			}
			if session.Connected && session.Address != "" {
				c.logger.Debug("wallet confirmed via poll", "attempt", attempt)
				return c.identity(ctx, session.Address), nil
			}
		}
	}

	return core.WalletIdentity{}, core.ErrConnectTimeout
}

// Disconnect implements ports.Wallet.
func (c *Connector) Disconnect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.bridgeURL+"/disconnect", nil)
	if err != nil {
		return fmt.Errorf("build disconnect request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("disconnect wallet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("disconnect wallet: bridge returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// identity attaches a best-effort BNS name to the address. Lookup failures
// never fail the connection.
func (c *Connector) identity(ctx context.Context, address string) core.WalletIdentity {
	id := core.WalletIdentity{Address: address}
	if c.bns == nil {
		return id
	}

	name, err := c.bns.Resolve(ctx, address)
	if err != nil {
		c.logger.Debug("bns lookup failed", "address", address, "error", err)
		return id
	}
	id.BNSName = name
	return id
}

func (c *Connector) session(ctx context.Context) (*bridgeSession, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.bridgeURL+"/session", nil)
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query bridge session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bridge session returned HTTP %d", resp.StatusCode)
	}

	var session bridgeSession
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&session); err != nil {
		return nil, fmt.Errorf("decode bridge session: %w", err)
	}
	return &session, nil
}

// initiate asks the bridge to open the wallet UI, passing the loopback URL
// the wallet should confirm to. The bridge echoes the state token back in
// its callback so a stale flow cannot complete this one.
func (c *Connector) initiate(ctx context.Context, callbackURL, state string) error {
	body, err := json.Marshal(map[string]string{
		"app_name":     c.appName,
		"callback_url": callbackURL,
		"state":        state,
	})
	if err != nil {
		return fmt.Errorf("encode connect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.bridgeURL+"/connect", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build connect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("initiate wallet connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("initiate wallet connect: bridge returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// startCallbackServer brings up the loopback listener that receives the
// bridge's finish callback. The state token ties the callback to this flow.
func (c *Connector) startCallbackServer(state string, addressCh chan<- string) (*http.Server, string, error) {
	listener, err := net.Listen("tcp", c.callbackAddr)
	if err != nil {
		return nil, "", fmt.Errorf("listen for wallet callback: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.POST(callbackPath, func(g *gin.Context) {
		var req struct {
			State   string `json:"state"`
			Address string `json:"address"`
		}
		if err := g.ShouldBindJSON(&req); err != nil || req.State != state || req.Address == "" {
			g.JSON(http.StatusBadRequest, gin.H{"error": "invalid callback"})
			return
		}

		select {
		case addressCh <- req.Address:
		default:
		}
		g.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{Handler: router}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Warn("wallet callback server stopped", "error", err)
		}
	}()

	callbackURL := fmt.Sprintf("http://%s%s", listener.Addr(), callbackPath)
	return srv, callbackURL, nil
}
