// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package usage

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ModelPricing contains pricing per 1M tokens for a model
type ModelPricing struct {
	InputPerMillion  float64 `yaml:"input_per_million" json:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million" json:"output_per_million"`
}

// PricingTable holds pricing information for all known models
type PricingTable struct {
	Models map[string]ModelPricing `yaml:"models"`
	mu     sync.RWMutex
}

// DefaultPricing contains Vertex AI pricing for the Gemini 2.5 family (USD)
var DefaultPricing = map[string]ModelPricing{
	"gemini-2.5-pro":        {InputPerMillion: 1.25, OutputPerMillion: 10.00},
	"gemini-2.5-flash":      {InputPerMillion: 0.30, OutputPerMillion: 2.50},
	"gemini-2.5-flash-lite": {InputPerMillion: 0.10, OutputPerMillion: 0.40},
}

// NewPricingTable creates a pricing table seeded with the defaults
func NewPricingTable() *PricingTable {
	models := make(map[string]ModelPricing, len(DefaultPricing))
	for name, p := range DefaultPricing {
		models[name] = p
	}
	return &PricingTable{Models: models}
}

// LoadPricingFile merges the YAML price file at path over the defaults.
// An empty path returns the defaults.
func LoadPricingFile(path string) (*PricingTable, error) {
	table := NewPricingTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing file: %w", err)
	}

	var custom struct {
		Models map[string]ModelPricing `yaml:"models"`
	}
	if err := yaml.Unmarshal(data, &custom); err != nil {
		return nil, fmt.Errorf("failed to parse pricing file: %w", err)
	}

	for model, pricing := range custom.Models {
		if pricing.InputPerMillion < 0 || pricing.OutputPerMillion < 0 {
			return nil, fmt.Errorf("negative price for model %q", model)
		}
		table.Set(model, pricing)
	}
	return table, nil
}

// Get returns pricing for a model. Lookup is case-insensitive.
func (p *PricingTable) Get(model string) (ModelPricing, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if pricing, ok := p.Models[model]; ok {
		return pricing, true
	}
	pricing, ok := p.Models[strings.ToLower(model)]
	return pricing, ok
}

// Set sets pricing for a model
func (p *PricingTable) Set(model string, pricing ModelPricing) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Models[strings.ToLower(model)] = pricing
}

// Names returns the priced model names in sorted order
func (p *PricingTable) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.Models))
	for name := range p.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CalculateCost returns the USD cost of the given token counts.
// Unknown models cost nothing.
func (p *PricingTable) CalculateCost(model string, inputTokens, outputTokens int) float64 {
	pricing, ok := p.Get(model)
	if !ok {
		return 0
	}
	inputCost := float64(inputTokens) * pricing.InputPerMillion / 1_000_000
	outputCost := float64(outputTokens) * pricing.OutputPerMillion / 1_000_000
	return inputCost + outputCost
}

// FormatUSD renders a dollar amount with enough precision for small model costs
func FormatUSD(amount float64) string {
	if amount != 0 && amount < 0.01 {
		return fmt.Sprintf("$%.6f", amount)
	}
	return fmt.Sprintf("$%.2f", amount)
}
