// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package orchestrator is the HTTP service of the slides translator.
//
// It exposes the conversational agent as sessions, the translation tool as
// a direct endpoint, the OAuth callback that completes user authorization,
// and the history of translation runs.
//
// Routes:
//
//	GET  /health
//	GET  /prometheus
//	POST /api/v1/sessions
//	GET  /api/v1/sessions/{id}
//	POST /api/v1/sessions/{id}/messages
//	POST /api/v1/sessions/{id}/resume
//	POST /api/v1/translate
//	GET  /api/v1/translations
//	GET  /api/v1/translations/{id}
//	GET  /oauth/callback
//
// Callers identify themselves with the X-User-ID header. Requests without it
// act as the "anonymous" user.
package orchestrator
