// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package auth

import (
	"sort"

	"golang.org/x/oauth2"
)

const (
	// AuthorizationURL is the Google OAuth 2.0 authorization endpoint.
	AuthorizationURL = "https://accounts.google.com/o/oauth2/auth"

	// TokenURL is the Google OAuth 2.0 token endpoint.
	TokenURL = "https://oauth2.googleapis.com/token"

	// ScopeDrive grants access to Google Drive files.
	ScopeDrive = "https://www.googleapis.com/auth/drive"

	// ScopePresentations grants access to Google Slides presentations.
	ScopePresentations = "https://www.googleapis.com/auth/presentations"
)

// Scopes maps each requested scope to the API it unlocks.
var Scopes = map[string]string{
	ScopeDrive:         "Google Drive API",
	ScopePresentations: "Google Slides API",
}

// ScopeList returns the requested scopes in a stable order.
func ScopeList() []string {
	scopes := make([]string, 0, len(Scopes))
	for scope := range Scopes {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	return scopes
}

// NewOAuthConfig builds the authorization-code flow configuration.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       ScopeList(),
		Endpoint: oauth2.Endpoint{
			AuthURL:  AuthorizationURL,
			TokenURL: TokenURL,
		},
	}
}
