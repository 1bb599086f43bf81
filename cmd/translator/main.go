// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Command translator runs the slides translator HTTP service.
//
// Usage:
//
//	./translator
//
// Environment Variables:
//
//	GOOGLE_CLOUD_PROJECT - Google Cloud project hosting Vertex AI (required)
//	AUTHENTICATION_CLIENT_ID - OAuth client id (required)
//	AUTHENTICATION_CLIENT_SECRET - OAuth client secret (required)
//	GOOGLE_CLOUD_LOCATION - Vertex AI location (default: global)
//	PORT - HTTP server port (default: 8080)
//	REDIS_URL - token store (optional)
//	DATABASE_URL - translation history (optional)
//	REPORTS_BUCKET - report archive bucket (optional)
//	API_TOKEN_KEY - signs API bearer tokens; when unset X-User-ID is trusted (optional)
//
// A .env file in the working directory is loaded first when present.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fmind/slides-translator-agent/config"
	"github.com/fmind/slides-translator-agent/orchestrator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := orchestrator.Run(context.Background(), cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
