// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package gemini

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/genai"
)

type fakeCall struct {
	model    string
	text     string
	system   string
	tempZero bool
}

type fakeGenerator struct {
	mu        sync.Mutex
	calls     []fakeCall
	responses []*genai.GenerateContentResponse
	errs      []error
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := fakeCall{model: model}
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		call.text = contents[0].Parts[0].Text
	}
	if config != nil {
		if config.SystemInstruction != nil && len(config.SystemInstruction.Parts) > 0 {
			call.system = config.SystemInstruction.Parts[0].Text
		}
		call.tempZero = config.Temperature != nil && *config.Temperature == 0
	}
	idx := len(f.calls)
	f.calls = append(f.calls, call)

	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return textResponse("default", 1, 1), nil
}

func textResponse(text string, in, out int32) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(text, genai.RoleModel)},
		},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     in,
			CandidatesTokenCount: out,
		},
	}
}

func newTestProvider(t *testing.T, gen Generator, cfg Config) *Provider {
	t.Helper()
	p, err := NewProvider(gen, cfg)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	p.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return p
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name        string
		gen         Generator
		cfg         Config
		wantErr     bool
		wantModel   string
		wantAttempt int
	}{
		{
			name:        "defaults",
			gen:         &fakeGenerator{},
			wantModel:   DefaultModel,
			wantAttempt: DefaultMaxAttempts,
		},
		{
			name:        "custom model and attempts",
			gen:         &fakeGenerator{},
			cfg:         Config{Model: "gemini-2.5-pro", MaxAttempts: 5},
			wantModel:   "gemini-2.5-pro",
			wantAttempt: 5,
		},
		{
			name:    "missing generator",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.gen, tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if p.Model() != tt.wantModel {
				t.Errorf("Model() = %q, want %q", p.Model(), tt.wantModel)
			}
			if p.maxAttempts != tt.wantAttempt {
				t.Errorf("maxAttempts = %d, want %d", p.maxAttempts, tt.wantAttempt)
			}
			if p.Name() != "gemini" {
				t.Errorf("Name() = %q", p.Name())
			}
			if !p.IsHealthy() {
				t.Error("new provider should be healthy")
			}
		})
	}
}

func TestTranslate_Success(t *testing.T) {
	gen := &fakeGenerator{responses: []*genai.GenerateContentResponse{
		textResponse("  Bonjour le monde \n", 12, 4),
	}}
	p := newTestProvider(t, gen, Config{Model: "gemini-2.5-flash-lite"})

	instructions := BuildInstructions("French", "")
	got, err := p.Translate(context.Background(), "Hello world", instructions)
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}

	if got.Text != "Bonjour le monde" {
		t.Errorf("Text = %q, want trimmed translation", got.Text)
	}
	if got.Source != "Hello world" {
		t.Errorf("Source = %q", got.Source)
	}
	if got.Usage.InputTokens != 12 || got.Usage.OutputTokens != 4 {
		t.Errorf("Usage = %+v, want 12/4", got.Usage)
	}
	if got.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", got.Attempts)
	}

	if len(gen.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(gen.calls))
	}
	call := gen.calls[0]
	if call.model != "gemini-2.5-flash-lite" {
		t.Errorf("model = %q", call.model)
	}
	if call.text != "Hello world" {
		t.Errorf("content = %q", call.text)
	}
	if call.system != instructions {
		t.Errorf("system instruction = %q", call.system)
	}
	if !call.tempZero {
		t.Error("temperature should be set to zero")
	}
}

func TestTranslate_EmptyResponse(t *testing.T) {
	gen := &fakeGenerator{responses: []*genai.GenerateContentResponse{textResponse("   ", 3, 0)}}
	p := newTestProvider(t, gen, Config{})

	_, err := p.Translate(context.Background(), "Hello", "instr")
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("error = %v, want ErrEmptyResponse", err)
	}
}

func TestTranslate_RetriesRetryableErrors(t *testing.T) {
	gen := &fakeGenerator{
		errs: []error{
			genai.APIError{Code: 429, Message: "resource exhausted"},
			genai.APIError{Code: 503, Message: "unavailable"},
		},
		responses: []*genai.GenerateContentResponse{nil, nil, textResponse("Hola", 5, 2)},
	}
	p := newTestProvider(t, gen, Config{})

	got, err := p.Translate(context.Background(), "Hello", "instr")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got.Text != "Hola" {
		t.Errorf("Text = %q", got.Text)
	}
	if got.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", got.Attempts)
	}
	if !p.IsHealthy() {
		t.Error("provider should be healthy after success")
	}
}

func TestTranslate_GivesUpAfterMaxAttempts(t *testing.T) {
	gen := &fakeGenerator{errs: []error{
		genai.APIError{Code: 500},
		genai.APIError{Code: 500},
	}}
	p := newTestProvider(t, gen, Config{MaxAttempts: 2})

	_, err := p.Translate(context.Background(), "Hello", "instr")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Errorf("error = %v", err)
	}
	if len(gen.calls) != 2 {
		t.Errorf("calls = %d, want 2", len(gen.calls))
	}
	if p.IsHealthy() {
		t.Error("provider should be unhealthy")
	}
}

func TestTranslate_DoesNotRetryClientErrors(t *testing.T) {
	gen := &fakeGenerator{errs: []error{genai.APIError{Code: 400, Message: "bad request"}}}
	p := newTestProvider(t, gen, Config{})

	_, err := p.Translate(context.Background(), "Hello", "instr")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(gen.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(gen.calls))
	}
}

func TestTranslate_ContextCancelledDuringBackoff(t *testing.T) {
	gen := &fakeGenerator{errs: []error{genai.APIError{Code: 429}}}
	p := newTestProvider(t, gen, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	p.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	_, err := p.Translate(ctx, "Hello", "instr")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", genai.APIError{Code: 429}, true},
		{"server error", genai.APIError{Code: 500}, true},
		{"bad gateway pointer", &genai.APIError{Code: 502}, true},
		{"wrapped", errors.Join(errors.New("call"), genai.APIError{Code: 503}), true},
		{"bad request", genai.APIError{Code: 400}, false},
		{"permission", genai.APIError{Code: 403}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUsageOf(t *testing.T) {
	if got := UsageOf(nil); got.InputTokens != 0 || got.OutputTokens != 0 {
		t.Errorf("UsageOf(nil) = %+v", got)
	}
	if got := UsageOf(&genai.GenerateContentResponse{}); got.InputTokens != 0 {
		t.Errorf("UsageOf(no metadata) = %+v", got)
	}
	if got := UsageOf(textResponse("x", 7, 9)); got.InputTokens != 7 || got.OutputTokens != 9 {
		t.Errorf("UsageOf() = %+v", got)
	}
}

func TestBuildInstructions(t *testing.T) {
	base := "Translate the following text to Italian as accurately as possible. " +
		"Do not add any preamble, intro, or explanation; return only the translated text."

	if got := BuildInstructions("Italian", ""); got != base {
		t.Errorf("without context = %q", got)
	}
	if got := BuildInstructions("Italian", "   "); got != base {
		t.Errorf("blank context = %q", got)
	}

	want := base + " You are provided with this context to perform the task: 'Quarterly sales deck'"
	if got := BuildInstructions("Italian", "Quarterly sales deck"); got != want {
		t.Errorf("with context = %q, want %q", got, want)
	}
}

func TestIsValidModel(t *testing.T) {
	if !IsValidModel("gemini-2.5-flash") {
		t.Error("gemini-2.5-flash should be valid")
	}
	if IsValidModel("gpt-4") {
		t.Error("gpt-4 should be invalid")
	}
}
