// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package auth

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/oauth2"
)

// ErrTokenNotFound is returned when no token is cached for a user.
var ErrTokenNotFound = errors.New("token not found")

// TokenStore caches OAuth tokens per user.
type TokenStore interface {
	Get(ctx context.Context, userID, key string) (*oauth2.Token, error)
	Put(ctx context.Context, userID, key string, tok *oauth2.Token) error
	Delete(ctx context.Context, userID, key string) error
}

// storeKey scopes a cache key to a user.
func storeKey(userID, key string) string {
	return userID + ":" + key
}

// MemoryStore is an in-process TokenStore.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]oauth2.Token
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]oauth2.Token)}
}

// Get returns a copy of the cached token.
func (s *MemoryStore) Get(_ context.Context, userID, key string) (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tok, ok := s.tokens[storeKey(userID, key)]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return &tok, nil
}

// Put caches a copy of tok.
func (s *MemoryStore) Put(_ context.Context, userID, key string, tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("nil token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[storeKey(userID, key)] = *tok
	return nil
}

// Delete removes the cached token. Deleting a missing token is not an error.
func (s *MemoryStore) Delete(_ context.Context, userID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, storeKey(userID, key))
	return nil
}
