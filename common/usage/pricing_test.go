// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package usage

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestCalculateCost(t *testing.T) {
	table := NewPricingTable()

	tests := []struct {
		name     string
		model    string
		input    int
		output   int
		expected float64
	}{
		{"flash one million each", "gemini-2.5-flash", 1_000_000, 1_000_000, 2.80},
		{"pro", "gemini-2.5-pro", 2_000_000, 100_000, 2.5 + 1.0},
		{"flash lite", "gemini-2.5-flash-lite", 500_000, 0, 0.05},
		{"case insensitive", "Gemini-2.5-Flash", 1_000_000, 0, 0.30},
		{"unknown model is free", "gemini-9-ultra", 1_000_000, 1_000_000, 0},
		{"zero tokens", "gemini-2.5-pro", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := table.CalculateCost(tt.model, tt.input, tt.output)
			if !almostEqual(got, tt.expected) {
				t.Errorf("CalculateCost(%s, %d, %d) = %v, want %v", tt.model, tt.input, tt.output, got, tt.expected)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	table := NewPricingTable()
	usages := []TokenUsage{
		{InputTokens: 100, OutputTokens: 40},
		{InputTokens: 250, OutputTokens: 60},
		{InputTokens: 650, OutputTokens: 900},
	}

	report := table.Summarize("gemini-2.5-flash", usages)

	if report.Calls != 3 {
		t.Errorf("Expected 3 calls, got %d", report.Calls)
	}
	if report.TotalInputTokens != 1000 {
		t.Errorf("Expected 1000 input tokens, got %d", report.TotalInputTokens)
	}
	if report.TotalOutputTokens != 1000 {
		t.Errorf("Expected 1000 output tokens, got %d", report.TotalOutputTokens)
	}
	want := 1000*0.30/1_000_000 + 1000*2.50/1_000_000
	if !almostEqual(report.TotalCostUSD, want) {
		t.Errorf("Expected cost %v, got %v", want, report.TotalCostUSD)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	report := NewPricingTable().Summarize("gemini-2.5-flash", nil)
	if report.Calls != 0 || report.TotalCostUSD != 0 {
		t.Errorf("Expected empty report, got %+v", report)
	}
}

func TestLoadPricingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricing.yaml")
	content := `models:
  gemini-2.5-flash:
    input_per_million: 0.15
    output_per_million: 0.60
  gemini-3.0-flash:
    input_per_million: 0.50
    output_per_million: 3.00
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	table, err := LoadPricingFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	flash, _ := table.Get("gemini-2.5-flash")
	if flash.InputPerMillion != 0.15 || flash.OutputPerMillion != 0.60 {
		t.Errorf("Expected override for flash, got %+v", flash)
	}
	if _, ok := table.Get("gemini-3.0-flash"); !ok {
		t.Error("Expected new model to be added")
	}
	if _, ok := table.Get("gemini-2.5-pro"); !ok {
		t.Error("Expected defaults to be kept")
	}
	if names := table.Names(); len(names) != 4 {
		t.Errorf("Expected 4 models, got %v", names)
	}
}

func TestLoadPricingFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadPricingFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	_ = os.WriteFile(bad, []byte("models: [not, a, map"), 0o600)
	if _, err := LoadPricingFile(bad); err == nil {
		t.Error("Expected error for malformed YAML")
	}

	negative := filepath.Join(dir, "negative.yaml")
	_ = os.WriteFile(negative, []byte("models:\n  x:\n    input_per_million: -1\n"), 0o600)
	if _, err := LoadPricingFile(negative); err == nil {
		t.Error("Expected error for negative price")
	}

	table, err := LoadPricingFile("")
	if err != nil || len(table.Names()) != len(DefaultPricing) {
		t.Errorf("Expected defaults for empty path, got %v, %v", table, err)
	}
}

func TestFormatUSD(t *testing.T) {
	tests := map[float64]string{
		0:        "$0.00",
		1.35:     "$1.35",
		0.001234: "$0.001234",
		12:       "$12.00",
	}
	for in, want := range tests {
		if got := FormatUSD(in); got != want {
			t.Errorf("FormatUSD(%v) = %s, want %s", in, got, want)
		}
	}
}
