// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package usage

// TokenUsage is the token accounting of a single model call
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Report summarizes the token usage and cost of a translation run
type Report struct {
	Model             string  `json:"model"`
	Calls             int     `json:"calls"`
	TotalInputTokens  int     `json:"total_input_tokens"`
	TotalOutputTokens int     `json:"total_output_tokens"`
	TotalCostUSD      float64 `json:"total_cost_usd"`
}

// Summarize totals the usages of calls made against model and prices them
func (p *PricingTable) Summarize(model string, usages []TokenUsage) Report {
	report := Report{Model: model, Calls: len(usages)}
	for _, u := range usages {
		report.TotalInputTokens += u.InputTokens
		report.TotalOutputTokens += u.OutputTokens
	}
	report.TotalCostUSD = p.CalculateCost(model, report.TotalInputTokens, report.TotalOutputTokens)
	return report
}
