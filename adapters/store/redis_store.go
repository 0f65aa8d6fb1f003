package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deorganized/sessionkit/core"
	"github.com/deorganized/sessionkit/ports"
)

const (
	keyAccessToken   = "access_token"
	keyRefreshToken  = "refresh_token"
	keyUser          = "user"
	keyPendingWallet = "pending_wallet_address"

	// PendingWalletTTL bounds how long a pending wallet address survives an
	// abandoned setup flow.
	PendingWalletTTL = 30 * time.Minute
)

// RedisStore is a Redis implementation of the Store interface, for headless
// deployments where a session is shared across processes. Session writes go
// through a transactional pipeline so tokens and user land together.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis store. The prefix namespaces all keys;
// pass "" for the default.
func NewRedisStore(client *redis.Client, prefix string) ports.Store {
	if prefix == "" {
		prefix = "deorg:session:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

// get reads a key, mapping redis.Nil onto the empty string.
func (s *RedisStore) get(ctx context.Context, name string) (string, error) {
	val, err := s.client.Get(ctx, s.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return val, nil
}

func (s *RedisStore) StoreSession(ctx context.Context, tokens core.Tokens, user core.User) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(keyAccessToken), tokens.Access, 0)
	pipe.Set(ctx, s.key(keyRefreshToken), tokens.Refresh, 0)
	pipe.Set(ctx, s.key(keyUser), userJSON, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisStore) StoreTokens(ctx context.Context, tokens core.Tokens) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(keyAccessToken), tokens.Access, 0)
	pipe.Set(ctx, s.key(keyRefreshToken), tokens.Refresh, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store tokens: %w", err)
	}
	return nil
}

func (s *RedisStore) StoreUser(ctx context.Context, user core.User) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.client.Set(ctx, s.key(keyUser), userJSON, 0).Err(); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	return nil
}

func (s *RedisStore) AccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, keyAccessToken)
}

func (s *RedisStore) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, keyRefreshToken)
}

// User returns the cached user snapshot. A corrupt value reads as absent.
func (s *RedisStore) User(ctx context.Context) (*core.User, error) {
	val, err := s.get(ctx, keyUser)
	if err != nil || val == "" {
		return nil, err
	}

	var user core.User
	if err := json.Unmarshal([]byte(val), &user); err != nil {
		return nil, nil
	}
	return &user, nil
}

func (s *RedisStore) ClearAll(ctx context.Context) error {
	keys := []string{
		s.key(keyAccessToken),
		s.key(keyRefreshToken),
		s.key(keyUser),
		s.key(keyPendingWallet),
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *RedisStore) StorePendingWallet(ctx context.Context, address string) error {
	if err := s.client.Set(ctx, s.key(keyPendingWallet), address, PendingWalletTTL).Err(); err != nil {
		return fmt.Errorf("store pending wallet: %w", err)
	}
	return nil
}

func (s *RedisStore) PendingWallet(ctx context.Context) (string, error) {
	return s.get(ctx, keyPendingWallet)
}

func (s *RedisStore) ClearPendingWallet(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key(keyPendingWallet)).Err(); err != nil {
		return fmt.Errorf("clear pending wallet: %w", err)
	}
	return nil
}
