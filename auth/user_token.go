// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	userTokenIssuer = "slides-translator-api"

	// DefaultUserTokenTTL is the lifetime of issued API tokens.
	DefaultUserTokenTTL = 24 * time.Hour
)

// ErrInvalidUserToken is returned when a bearer token fails verification.
var ErrInvalidUserToken = errors.New("invalid user token")

// UserTokens issues and verifies HS256 bearer tokens naming an API caller.
// They use their own issuer, so an OAuth state token is never accepted.
type UserTokens struct {
	key []byte
	now func() time.Time
}

// NewUserTokens creates a token issuer and verifier.
func NewUserTokens(key string) (*UserTokens, error) {
	if key == "" {
		return nil, errors.New("user token key is required")
	}
	return &UserTokens{key: []byte(key), now: time.Now}, nil
}

// Issue signs a token for userID. A ttl of zero uses DefaultUserTokenTTL.
func (u *UserTokens) Issue(userID string, ttl time.Duration) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("user id is required")
	}
	if ttl <= 0 {
		ttl = DefaultUserTokenTTL
	}
	now := u.now()
	claims := jwt.RegisteredClaims{
		Issuer:    userTokenIssuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(u.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign user token: %w", err)
	}
	return signed, nil
}

// Verify returns the user named by a valid token.
func (u *UserTokens) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return u.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(userTokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(u.now),
	)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidUserToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidUserToken)
	}
	return claims.Subject, nil
}
