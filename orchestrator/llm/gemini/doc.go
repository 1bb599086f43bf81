// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package gemini provides the Gemini translation provider backed by the
// Google Gen AI SDK on Vertex AI.
//
// The provider sends one text per request with a system instruction naming
// the target language, at temperature zero, and reports the token usage of
// every call. Rate-limit and server errors are retried with exponential
// backoff.
package gemini
