// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

/*
Package logger provides structured JSON logging for the slides translator
components.

# Overview

Every entry is a single JSON line written to stdout (or a configured
writer), which keeps the output consumable by Cloud Logging and other log
aggregation systems.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (orchestrator, slidesctl, etc.)
  - Instance ID and container name
  - User ID and request ID
  - Scope fields attached with With
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("orchestrator")

Scope a logger to one tool invocation:

	scoped := log.With(map[string]interface{}{
	    "session":      "sess-1",
	    "presentation": "1AbC",
	})
	scoped.Info("user-123", "inv-456", "Copying presentation", nil)

Entries below the configured level are dropped:

	log.SetLevel(logger.ParseLevel(os.Getenv("LOGGING_LEVEL")))

# Environment Variables

  - INSTANCE_ID: Deployment instance identifier
  - HOSTNAME: Container hostname (auto-detected)

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
