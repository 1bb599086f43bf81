// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/fmind/slides-translator-agent/shared/logger"
)

// PendingMessage is reported while the user has not granted access yet.
const PendingMessage = "Awaiting user authentication"

// NegotiateRequest identifies who needs credentials.
type NegotiateRequest struct {
	UserID    string
	SessionID string
	RequestID string

	// AuthCode is an authorization code returned by the consent screen, if any.
	AuthCode string
}

// Result is the outcome of a negotiation. Either TokenSource is set or
// Pending is true.
type Result struct {
	Token       *oauth2.Token
	TokenSource oauth2.TokenSource
	Pending     bool
	AuthURL     string
	Message     string
}

// Negotiator resolves OAuth credentials for users.
type Negotiator struct {
	oauth    *oauth2.Config
	store    TokenStore
	states   *StateSigner
	cacheKey string
	log      *logger.Logger
}

// NewNegotiator creates a Negotiator caching tokens under cacheKey.
func NewNegotiator(oauth *oauth2.Config, store TokenStore, states *StateSigner, cacheKey string, log *logger.Logger) *Negotiator {
	return &Negotiator{
		oauth:    oauth,
		store:    store,
		states:   states,
		cacheKey: cacheKey,
		log:      log,
	}
}

// Negotiate returns usable credentials for the user, or a pending result
// carrying the authorization URL.
func (n *Negotiator) Negotiate(ctx context.Context, req NegotiateRequest) (*Result, error) {
	if req.UserID == "" {
		return nil, errors.New("user id is required")
	}
	n.log.Info(req.UserID, req.RequestID, "Negotiating credentials", nil)

	if tok := n.cachedToken(ctx, req); tok != nil {
		return n.result(ctx, tok), nil
	}

	n.log.Debug(req.UserID, req.RequestID, "No valid cached token. Checking for auth response", nil)
	if req.AuthCode != "" {
		tok, err := n.exchange(ctx, req.UserID, req.AuthCode)
		if err != nil {
			return nil, err
		}
		n.log.Debug(req.UserID, req.RequestID, "New credentials created and cached successfully", nil)
		return n.result(ctx, tok), nil
	}

	n.log.Debug(req.UserID, req.RequestID, "No credentials available. Requesting user authentication", nil)
	authURL, err := n.AuthURL(req.UserID, req.SessionID)
	if err != nil {
		return nil, err
	}
	n.log.Info(req.UserID, req.RequestID, PendingMessage, nil)
	return &Result{Pending: true, AuthURL: authURL, Message: PendingMessage}, nil
}

// cachedToken returns a valid cached token, refreshing it when possible.
// Unusable cached tokens are removed.
func (n *Negotiator) cachedToken(ctx context.Context, req NegotiateRequest) *oauth2.Token {
	tok, err := n.store.Get(ctx, req.UserID, n.cacheKey)
	if errors.Is(err, ErrTokenNotFound) {
		return nil
	}
	if err != nil {
		n.log.Error(req.UserID, req.RequestID, "Error loading cached credentials", map[string]interface{}{
			"error": err.Error(),
		})
		n.drop(ctx, req)
		return nil
	}

	n.log.Debug(req.UserID, req.RequestID, "Found cached token", nil)
	if tok.Valid() {
		n.log.Debug(req.UserID, req.RequestID, "Cached credentials are valid", nil)
		return tok
	}
	if tok.RefreshToken == "" {
		n.drop(ctx, req)
		return nil
	}

	n.log.Debug(req.UserID, req.RequestID, "Cached credentials expired, attempting refresh", nil)
	refreshed, err := n.oauth.TokenSource(ctx, tok).Token()
	if err != nil {
		n.log.Error(req.UserID, req.RequestID, "Error refreshing cached credentials", map[string]interface{}{
			"error": err.Error(),
		})
		n.drop(ctx, req)
		return nil
	}
	if err := n.store.Put(ctx, req.UserID, n.cacheKey, refreshed); err != nil {
		n.log.Warn(req.UserID, req.RequestID, "Failed to cache refreshed credentials", map[string]interface{}{
			"error": err.Error(),
		})
	}
	n.log.Debug(req.UserID, req.RequestID, "Credentials refreshed and cached successfully", nil)
	return refreshed
}

func (n *Negotiator) drop(ctx context.Context, req NegotiateRequest) {
	if err := n.store.Delete(ctx, req.UserID, n.cacheKey); err != nil {
		n.log.Warn(req.UserID, req.RequestID, "Failed to drop cached credentials", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (n *Negotiator) exchange(ctx context.Context, userID, code string) (*oauth2.Token, error) {
	tok, err := n.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if err := n.store.Put(ctx, userID, n.cacheKey, tok); err != nil {
		return nil, fmt.Errorf("failed to cache credentials: %w", err)
	}
	return tok, nil
}

func (n *Negotiator) result(ctx context.Context, tok *oauth2.Token) *Result {
	return &Result{
		Token:       tok,
		TokenSource: n.oauth.TokenSource(ctx, tok),
	}
}

// AuthURL returns the consent URL for the user. Offline access is requested
// so the token can be refreshed without the user.
func (n *Negotiator) AuthURL(userID, sessionID string) (string, error) {
	state, err := n.states.Sign(userID, sessionID)
	if err != nil {
		return "", err
	}
	return n.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Complete handles the OAuth callback: it verifies state, exchanges code and
// caches the token for the user named in state.
func (n *Negotiator) Complete(ctx context.Context, state, code string) (*StateClaims, error) {
	claims, err := n.states.Verify(state)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, errors.New("authorization code is required")
	}
	if _, err := n.exchange(ctx, claims.UserID, code); err != nil {
		return nil, err
	}
	n.log.Info(claims.UserID, claims.SessionID, "User authentication completed", nil)
	return claims, nil
}

// Revoke forgets the cached token of a user.
func (n *Negotiator) Revoke(ctx context.Context, userID string) error {
	return n.store.Delete(ctx, userID, n.cacheKey)
}
