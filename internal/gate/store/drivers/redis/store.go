// Package redis implements the token cache on a redis backend. This is the
// production driver: TTL enforcement is entirely server-side, so expiry works
// across gatekeeper replicas without coordination.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store"
	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
}

// NewStore connects to redis using a URL of the form
// redis://[user:pass@]host:port/db.
func NewStore(url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	return &Store{client: redis.NewClient(opts)}, nil
}

// NewStoreWithClient wraps an existing client. Used by tests (miniredis) and
// by callers that need custom pool settings.
func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Save writes the serialized pair under both derived keys. The refresh key
// goes first: a Lookup racing this Save must at worst see soft-expired,
// never not-found.
func (s *Store) Save(ctx context.Context, pair domain.TokenPair) error {
	value, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("redis: marshal pair: %w", err)
	}

	refreshTTL := time.Duration(pair.RefreshExpiresIn) * time.Second
	accessTTL := time.Duration(pair.ExpiresIn) * time.Second

	if err := s.client.Set(ctx, store.RefreshKeyPrefix+pair.AccessToken, value, refreshTTL).Err(); err != nil {
		return fmt.Errorf("redis: set refresh key: %w", err)
	}
	if err := s.client.Set(ctx, store.AccessKeyPrefix+pair.AccessToken, value, accessTTL).Err(); err != nil {
		return fmt.Errorf("redis: set access key: %w", err)
	}
	return nil
}

// Lookup reads the access key first and falls through to the refresh key.
func (s *Store) Lookup(ctx context.Context, accessToken string) (*domain.TokenPair, bool, error) {
	value, err := s.client.Get(ctx, store.AccessKeyPrefix+accessToken).Bytes()
	if err == nil {
		pair, err := decodePair(value)
		return pair, false, err
	}
	if !errors.Is(err, redis.Nil) {
		return nil, false, fmt.Errorf("redis: get access key: %w", err)
	}

	// Access key expired; the longer-lived refresh key may still hold the pair.
	value, err = s.client.Get(ctx, store.RefreshKeyPrefix+accessToken).Bytes()
	if err == nil {
		pair, err := decodePair(value)
		return pair, true, err
	}
	if !errors.Is(err, redis.Nil) {
		return nil, false, fmt.Errorf("redis: get refresh key: %w", err)
	}

	return nil, true, store.ErrNotFound
}

func decodePair(value []byte) (*domain.TokenPair, error) {
	var pair domain.TokenPair
	if err := json.Unmarshal(value, &pair); err != nil {
		return nil, fmt.Errorf("redis: unmarshal pair: %w", err)
	}
	return &pair, nil
}
