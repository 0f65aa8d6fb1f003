// Package config loads application configuration from environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/deorganized/sessionkit/adapters/backend"
	"github.com/deorganized/sessionkit/adapters/wallet"
	"github.com/deorganized/sessionkit/service"
	"github.com/deorganized/sessionkit/token"
)

// Config holds all settings for the session tooling.
type Config struct {
	// Backend
	APIBaseURL  string
	HTTPTimeout time.Duration

	// Wallet
	WalletBridgeURL string
	CallbackAddr    string
	HiroAPIURL      string

	// Storage. RedisURL empty means the file store is used.
	SessionFile string
	RedisURL    string

	// Session
	RefreshInterval time.Duration
	ExpiryBuffer    time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		APIBaseURL:  envOrDefault("DEORG_API_BASE_URL", "http://localhost:8000/api"),
		HTTPTimeout: envOrDefaultDuration("DEORG_HTTP_TIMEOUT", backend.DefaultTimeout),

		WalletBridgeURL: envOrDefault("DEORG_WALLET_BRIDGE_URL", "http://localhost:8700"),
		CallbackAddr:    envOrDefault("DEORG_CALLBACK_ADDR", "127.0.0.1:0"),
		HiroAPIURL:      envOrDefault("DEORG_HIRO_API_URL", wallet.DefaultHiroAPIURL),

		SessionFile: envOrDefault("DEORG_SESSION_FILE", defaultSessionFile()),
		RedisURL:    os.Getenv("REDIS_URL"),

		RefreshInterval: envOrDefaultDuration("DEORG_REFRESH_INTERVAL", service.DefaultRefreshInterval),
		ExpiryBuffer:    envOrDefaultDuration("DEORG_EXPIRY_BUFFER", token.DefaultExpiryBuffer),
	}
}

// defaultSessionFile places the session under the user's config directory,
// falling back to the working directory when none is resolvable.
func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".deorganized-session.json"
	}
	return filepath.Join(dir, "deorganized", "session.json")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return fallback
}
