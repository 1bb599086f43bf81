// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

/*
Package auth negotiates the OAuth 2.0 credentials the translator uses to act
on a user's Google Drive and Google Slides.

# Negotiation

A Negotiator resolves credentials for a user in three steps:

 1. A cached token for the user is used as is when still valid, or refreshed
    and re-cached when expired with a refresh token. A cached token that
    cannot be loaded or refreshed is dropped.
 2. An authorization code supplied with the request is exchanged and cached.
 3. Otherwise the result is pending and carries the authorization URL the
    user must visit. The URL's state parameter is a signed token naming the
    user and the session, which the OAuth callback hands to Complete.

# Stores

Tokens are cached per user under the configured cache key. MemoryStore is
used for local runs and tests; RedisStore shares the cache between service
replicas.
*/
package auth
