// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func decodeEntries(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Failed to parse JSON log: %v\nOutput: %s", err, line)
		}
		entries = append(entries, entry)
	}
	return entries
}

// TestNew tests logger initialization
func TestNew(t *testing.T) {
	tests := []struct {
		name           string
		instanceID     string
		expectedInstID string
	}{
		{name: "with instance ID set", instanceID: "instance-123", expectedInstID: "instance-123"},
		{name: "without instance ID", instanceID: "", expectedInstID: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("INSTANCE_ID", tt.instanceID)

			logger := New("orchestrator")

			if logger.Component != "orchestrator" {
				t.Errorf("Expected component orchestrator, got %s", logger.Component)
			}
			if logger.InstanceID != tt.expectedInstID {
				t.Errorf("Expected instance ID %s, got %s", tt.expectedInstID, logger.InstanceID)
			}
			if logger.Container == "" {
				t.Error("Expected container to be set from hostname")
			}
			if logger.Level() != INFO {
				t.Errorf("Expected default level INFO, got %s", logger.Level())
			}
		})
	}
}

// TestLogLevels tests all log level methods
func TestLogLevels(t *testing.T) {
	tests := []struct {
		name    string
		logFunc func(*Logger, string, string, string, map[string]interface{})
		level   LogLevel
	}{
		{name: "Info log", logFunc: (*Logger).Info, level: INFO},
		{name: "Error log", logFunc: (*Logger).Error, level: ERROR},
		{name: "Warn log", logFunc: (*Logger).Warn, level: WARN},
		{name: "Debug log", logFunc: (*Logger).Debug, level: DEBUG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter("test-component", &buf)
			logger.SetLevel(DEBUG)

			tt.logFunc(logger, "user-123", "req-456", "message", map[string]interface{}{"key": "value"})

			entries := decodeEntries(t, &buf)
			if len(entries) != 1 {
				t.Fatalf("Expected 1 entry, got %d", len(entries))
			}
			entry := entries[0]
			if entry.Level != tt.level {
				t.Errorf("Expected level %s, got %s", tt.level, entry.Level)
			}
			if entry.UserID != "user-123" || entry.RequestID != "req-456" {
				t.Errorf("Unexpected ids: %q %q", entry.UserID, entry.RequestID)
			}
			if entry.Fields["key"] != "value" {
				t.Errorf("Expected field key=value, got %v", entry.Fields)
			}
			if _, err := time.Parse(time.RFC3339Nano, entry.Timestamp); err != nil {
				t.Errorf("Invalid timestamp format: %s", entry.Timestamp)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("test", &buf)
	logger.SetLevel(WARN)

	logger.Debug("u", "r", "debug", nil)
	logger.Info("u", "r", "info", nil)
	logger.Warn("u", "r", "warn", nil)
	logger.Error("u", "r", "error", nil)

	entries := decodeEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries at WARN, got %d", len(entries))
	}
	if entries[0].Message != "warn" || entries[1].Message != "error" {
		t.Errorf("Unexpected messages: %q %q", entries[0].Message, entries[1].Message)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":    DEBUG,
		" INFO ":   INFO,
		"warning":  WARN,
		"WARN":     WARN,
		"error":    ERROR,
		"critical": ERROR,
		"":         INFO,
		"verbose":  INFO,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestWithScope(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWithWriter("test", &buf)
	child := parent.With(map[string]interface{}{"session": "s1"})
	grandchild := child.With(map[string]interface{}{"presentation": "p1"})

	grandchild.Info("u", "inv", "scoped", nil)
	parent.Info("u", "inv", "unscoped", nil)

	entries := decodeEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Scope["session"] != "s1" || entries[0].Scope["presentation"] != "p1" {
		t.Errorf("Expected inherited scope, got %v", entries[0].Scope)
	}
	if entries[1].Scope != nil {
		t.Errorf("Parent scope must stay empty, got %v", entries[1].Scope)
	}

	// level changes propagate through the shared output
	child.SetLevel(ERROR)
	parent.Info("u", "r", "dropped", nil)
	if got := len(decodeEntries(t, &buf)); got != 2 {
		t.Errorf("Expected level change to apply to parent, got %d entries", got)
	}
}

func TestInfoWithDuration(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("test", &buf)
	logger.InfoWithDuration("u", "r", "done", 42.5, nil)

	entry := decodeEntries(t, &buf)[0]
	if entry.Fields["duration_ms"] != 42.5 {
		t.Errorf("Expected duration_ms 42.5, got %v", entry.Fields["duration_ms"])
	}
}

func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("test", &buf)
	logger.ErrorWithCode("u", "r", "failed", 502, errors.New("upstream"), map[string]interface{}{"step": "copy"})

	entry := decodeEntries(t, &buf)[0]
	if entry.Fields["status_code"] != float64(502) {
		t.Errorf("Expected status_code 502, got %v", entry.Fields["status_code"])
	}
	if entry.Fields["error"] != "upstream" {
		t.Errorf("Expected error upstream, got %v", entry.Fields["error"])
	}
	if entry.Fields["step"] != "copy" {
		t.Errorf("Expected step copy, got %v", entry.Fields["step"])
	}
}

func TestConcurrentLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("test", &buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("u", "r", "concurrent", nil)
		}()
	}
	wg.Wait()

	if got := len(decodeEntries(t, &buf)); got != 20 {
		t.Errorf("Expected 20 entries, got %d", got)
	}
}
