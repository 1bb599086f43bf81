// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/oauth2"
)

// DefaultTokenTTL bounds how long a cached token survives without refresh.
const DefaultTokenTTL = 30 * 24 * time.Hour

// RedisStore is a TokenStore backed by Redis. Tokens are stored as JSON.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisStore wraps client. A ttl of zero uses DefaultTokenTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Get loads the cached token for the user.
func (s *RedisStore) Get(ctx context.Context, userID, key string) (*oauth2.Token, error) {
	data, err := s.client.Get(ctx, storeKey(userID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &tok, nil
}

// Put stores tok with the store TTL.
func (s *RedisStore) Put(ctx context.Context, userID, key string, tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("nil token")
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := s.client.Set(ctx, storeKey(userID, key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	return nil
}

// Delete removes the cached token.
func (s *RedisStore) Delete(ctx context.Context, userID, key string) error {
	if err := s.client.Del(ctx, storeKey(userID, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
