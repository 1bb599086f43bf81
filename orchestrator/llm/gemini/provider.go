// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/fmind/slides-translator-agent/common/usage"
)

const (
	// DefaultModel is used when no translation model is configured.
	DefaultModel = "gemini-2.5-flash"

	// DefaultMaxAttempts bounds the calls made for a single text.
	DefaultMaxAttempts = 3

	// DefaultBackoff is the delay before the first retry. It doubles per attempt.
	DefaultBackoff = 500 * time.Millisecond
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("empty model response")

// Generator is the content generation surface of the Gen AI SDK.
// *genai.Client exposes it as client.Models.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewVertexClient creates a Gen AI client on the Vertex AI backend.
func NewVertexClient(ctx context.Context, project, location string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:  genai.BackendVertexAI,
		Project:  project,
		Location: location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gen ai client: %w", err)
	}
	return client, nil
}

// Config contains configuration for the translation provider.
type Config struct {
	Model       string        // Optional: model name (default: gemini-2.5-flash)
	MaxAttempts int           // Optional: attempts per text (default: 3)
	Backoff     time.Duration // Optional: first retry delay (default: 500ms)
}

// Translation is the result of translating one text.
type Translation struct {
	Source   string
	Text     string
	Usage    usage.TokenUsage
	Latency  time.Duration
	Attempts int
}

// Provider translates texts with a Gemini model.
type Provider struct {
	gen         Generator
	model       string
	maxAttempts int
	backoff     time.Duration
	sleep       func(context.Context, time.Duration) error

	healthy bool
	mu      sync.RWMutex
}

// NewProvider creates a new translation provider.
func NewProvider(gen Generator, cfg Config) (*Provider, error) {
	if gen == nil {
		return nil, errors.New("gemini generator is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	return &Provider{
		gen:         gen,
		model:       cfg.Model,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		sleep:       sleepContext,
		healthy:     true,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "gemini"
}

// Model returns the model used for translations.
func (p *Provider) Model() string {
	return p.model
}

// IsHealthy reports whether the last call succeeded.
func (p *Provider) IsHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthy
}

func (p *Provider) setHealthy(healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy = healthy
}

// Translate sends text to the model with the given system instructions.
func (p *Provider) Translate(ctx context.Context, text, instructions string) (*Translation, error) {
	start := time.Now()
	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](0),
		SystemInstruction: genai.NewContentFromText(instructions, genai.RoleUser),
	}
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := p.backoff << (attempt - 2)
			if err := p.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		resp, err := p.gen.GenerateContent(ctx, p.model, contents, config)
		if err != nil {
			lastErr = err
			if IsRetryable(err) && ctx.Err() == nil {
				p.setHealthy(false)
				continue
			}
			return nil, fmt.Errorf("gemini API error: %w", err)
		}
		p.setHealthy(true)

		translated := strings.TrimSpace(resp.Text())
		if translated == "" {
			return nil, ErrEmptyResponse
		}
		return &Translation{
			Source:   text,
			Text:     translated,
			Usage:    UsageOf(resp),
			Latency:  time.Since(start),
			Attempts: attempt,
		}, nil
	}
	return nil, fmt.Errorf("gemini API error after %d attempts: %w", p.maxAttempts, lastErr)
}

// UsageOf extracts the token usage of a response.
func UsageOf(resp *genai.GenerateContentResponse) usage.TokenUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return usage.TokenUsage{}
	}
	return usage.TokenUsage{
		InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
		OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
	}
}

// IsRetryable reports whether err is a rate limit or server error.
func IsRetryable(err error) bool {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code = apiErrPtr.Code
	default:
		return false
	}
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BuildInstructions returns the system instruction for a translation.
func BuildInstructions(targetLanguage, extraContext string) string {
	instructions := fmt.Sprintf("Translate the following text to %s as accurately as possible. "+
		"Do not add any preamble, intro, or explanation; return only the translated text.", targetLanguage)
	if extraContext = strings.TrimSpace(extraContext); extraContext != "" {
		instructions += fmt.Sprintf(" You are provided with this context to perform the task: '%s'", extraContext)
	}
	return instructions
}

// IsValidModel checks if the given model is a Gemini model name.
func IsValidModel(model string) bool {
	return strings.HasPrefix(model, "gemini-")
}
