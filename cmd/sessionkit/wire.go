package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"

	"github.com/deorganized/sessionkit/adapters/backend"
	"github.com/deorganized/sessionkit/adapters/events"
	"github.com/deorganized/sessionkit/adapters/store"
	"github.com/deorganized/sessionkit/adapters/wallet"
	"github.com/deorganized/sessionkit/config"
	"github.com/deorganized/sessionkit/ports"
	"github.com/deorganized/sessionkit/service"
)

// app bundles everything a command needs after wiring.
type app struct {
	cfg     *config.Config
	manager *service.Manager
	metrics *service.Metrics

	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// newApp wires the session manager from environment configuration. With
// REDIS_URL set the session lives in Redis and lifecycle events go out over
// a Redis stream; otherwise the session is a local file and events stay off.
func newApp(withMetrics bool) (*app, error) {
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	a := &app{cfg: cfg}

	var (
		sessionStore ports.Store
		publisher    ports.EventPublisher
		err          error
	)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		redisClient := redis.NewClient(opts)
		a.closers = append(a.closers, redisClient.Close)

		sessionStore = store.NewRedisStore(redisClient, "")

		wmPublisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			watermill.NewSlogLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("create event publisher: %w", err)
		}
		a.closers = append(a.closers, wmPublisher.Close)
		publisher = events.NewWatermillPublisher(wmPublisher)
	} else {
		sessionStore, err = store.NewFileStore(cfg.SessionFile)
		if err != nil {
			return nil, fmt.Errorf("open session file: %w", err)
		}
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	backendClient := backend.NewClient(cfg.APIBaseURL, httpClient)

	connector := wallet.NewConnector(cfg.WalletBridgeURL, wallet.Options{
		CallbackAddr: cfg.CallbackAddr,
		BNS:          wallet.NewBNSResolver(cfg.HiroAPIURL, httpClient),
		HTTPClient:   httpClient,
		Logger:       logger,
	})

	if withMetrics {
		a.metrics = service.NewMetrics()
	}

	manager, err := service.NewManager(service.Options{
		Store:           sessionStore,
		Backend:         backendClient,
		Wallet:          connector,
		Events:          publisher,
		Logger:          logger,
		Metrics:         a.metrics,
		ExpiryBuffer:    cfg.ExpiryBuffer,
		RefreshInterval: cfg.RefreshInterval,
	})
	if err != nil {
		return nil, err
	}
	a.manager = manager

	return a, nil
}
