// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package agent runs the conversational slides translator: a Gemini model
// that gathers the presentation and target language from the user and calls
// the translate_presentation tool.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/fmind/slides-translator-agent/common/usage"
	"github.com/fmind/slides-translator-agent/orchestrator/llm/gemini"
	"github.com/fmind/slides-translator-agent/orchestrator/translator"
	"github.com/fmind/slides-translator-agent/shared/logger"
)

// MaxRounds bounds the model calls made for a single turn.
const MaxRounds = 5

var (
	ErrTooManyRounds   = errors.New("agent did not produce an answer")
	ErrNothingToResume = errors.New("no tool call is awaiting authentication")
	ErrEmptyMessage    = errors.New("message is empty")
)

// ToolRunner executes the translate_presentation tool.
type ToolRunner interface {
	TranslatePresentation(ctx context.Context, tc translator.ToolContext, req translator.Request) (*translator.Response, error)
}

// ToolCall records a tool execution made during a turn.
type ToolCall struct {
	Name   string                 `json:"name"`
	Args   map[string]interface{} `json:"args"`
	Status string                 `json:"status"`
}

// Turn is the agent's answer to a user message.
type Turn struct {
	Text         string           `json:"text"`
	AuthRequired bool             `json:"auth_required,omitempty"`
	AuthURL      string           `json:"auth_url,omitempty"`
	ToolCalls    []ToolCall       `json:"tool_calls,omitempty"`
	Usage        usage.TokenUsage `json:"usage"`
}

// Agent drives the model and its tool.
type Agent struct {
	gen    gemini.Generator
	model  string
	tool   ToolRunner
	config *genai.GenerateContentConfig
	log    *logger.Logger
}

// New creates an agent using model for conversation.
func New(gen gemini.Generator, model string, tool ToolRunner, log *logger.Logger) *Agent {
	if model == "" {
		model = gemini.DefaultModel
	}
	if log == nil {
		log = logger.New("agent")
	}
	return &Agent{
		gen:    gen,
		model:  model,
		tool:   tool,
		config: GenerateConfig(),
		log:    log,
	}
}

// Model returns the conversation model name.
func (a *Agent) Model() string {
	return a.model
}

// Run adds the user message to the session and returns the agent's answer.
func (a *Agent) Run(ctx context.Context, s *Session, message string) (*Turn, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Calls left waiting for authorization are answered as pending so the
	// history stays a valid call/response sequence.
	if s.pending != nil {
		s.History = append(s.History, s.pending.content())
		s.pending = nil
	}
	s.History = append(s.History, genai.NewContentFromText(message, genai.RoleUser))
	return a.loop(ctx, s, &Turn{})
}

// Resume executes the tool calls that were waiting for authorization and
// answers the whole model reply once all of them have completed.
// authCode may be empty when the token was stored by the OAuth callback.
func (a *Agent) Resume(ctx context.Context, s *Session, authCode string) (*Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.pending
	if batch == nil {
		return nil, ErrNothingToResume
	}

	turn := &Turn{}
	if blocked := a.runBatch(ctx, s, batch, authCode, turn); blocked {
		return turn, nil
	}
	s.History = append(s.History, batch.content())
	return a.loop(ctx, s, turn)
}

func (a *Agent) loop(ctx context.Context, s *Session, turn *Turn) (*Turn, error) {
	for round := 0; round < MaxRounds; round++ {
		start := time.Now()
		resp, err := a.gen.GenerateContent(ctx, a.model, s.History, a.config)
		if err != nil {
			a.log.Error(s.UserID, s.ID, "Agent model call failed", map[string]interface{}{
				"model": a.model,
				"error": err.Error(),
			})
			return nil, fmt.Errorf("agent model call failed: %w", err)
		}
		u := gemini.UsageOf(resp)
		turn.Usage.InputTokens += u.InputTokens
		turn.Usage.OutputTokens += u.OutputTokens
		a.log.InfoWithDuration(s.UserID, s.ID, "Agent model call", float64(time.Since(start).Milliseconds()), map[string]interface{}{
			"round": round + 1,
		})

		if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
			content := resp.Candidates[0].Content
			if content.Role == "" {
				content.Role = string(genai.RoleModel)
			}
			s.History = append(s.History, content)
		}
		s.UpdatedAt = time.Now().UTC()

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			turn.Text = strings.TrimSpace(resp.Text())
			return turn, nil
		}

		batch := newToolBatch(calls)
		if blocked := a.runBatch(ctx, s, batch, "", turn); blocked {
			return turn, nil
		}
		s.History = append(s.History, batch.content())
	}
	return nil, ErrTooManyRounds
}

// runBatch executes the calls of batch that have no response yet. Once a
// call reports pending authorization the remaining calls are left for
// Resume, since they need the same credentials. It returns true and keeps
// batch on the session when some call is still waiting.
func (a *Agent) runBatch(ctx context.Context, s *Session, batch *toolBatch, authCode string, turn *Turn) bool {
	blocked := false
	for i, call := range batch.calls {
		if batch.responses[i] != nil || blocked {
			continue
		}
		record := ToolCall{Name: call.Name, Args: call.Args}
		result := a.invoke(ctx, s, call, authCode, &record)
		turn.ToolCalls = append(turn.ToolCalls, record)

		if record.Status == "pending" {
			blocked = true
			turn.AuthRequired = true
			turn.AuthURL, _ = result["auth_url"].(string)
			turn.Text, _ = result["message"].(string)
			continue
		}
		batch.responses[i] = functionResponse(call, result)
	}

	if blocked {
		s.pending = batch
		a.log.Info(s.UserID, s.ID, "Tool calls awaiting authorization", map[string]interface{}{
			"waiting": len(batch.waiting()),
			"calls":   len(batch.calls),
		})
		return true
	}
	s.pending = nil
	return false
}

func (a *Agent) invoke(ctx context.Context, s *Session, call *genai.FunctionCall, authCode string, record *ToolCall) map[string]interface{} {
	if call.Name != translator.Name {
		record.Status = "unknown_tool"
		return map[string]interface{}{"error": fmt.Sprintf("unknown tool %q", call.Name)}
	}

	req := translator.Request{
		PresentationID: stringArg(call.Args, "presentation_id"),
		TargetLanguage: stringArg(call.Args, "target_language"),
		SlidesContext:  stringArg(call.Args, "slides_context"),
		AuthCode:       authCode,
	}
	tc := translator.ToolContext{UserID: s.UserID, SessionID: s.ID, InvocationID: uuid.NewString()}

	resp, err := a.tool.TranslatePresentation(ctx, tc, req)
	if err != nil {
		record.Status = "error"
		a.log.Warn(s.UserID, tc.InvocationID, "Tool call failed", map[string]interface{}{
			"tool":  call.Name,
			"step":  translator.FailedStep(err),
			"error": err.Error(),
		})
		return map[string]interface{}{"status": "error", "error": err.Error()}
	}
	if resp.Pending {
		record.Status = "pending"
	} else {
		record.Status = "ok"
	}
	return toMap(resp)
}

func functionResponse(call *genai.FunctionCall, result map[string]interface{}) *genai.Part {
	return &genai.Part{FunctionResponse: &genai.FunctionResponse{
		ID:       call.ID,
		Name:     call.Name,
		Response: result,
	}}
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

// toMap flattens the tool response into the map the model receives. The
// report fields are inlined next to the pending fields.
func toMap(resp *translator.Response) map[string]interface{} {
	out := map[string]interface{}{}
	if resp.Pending {
		out["pending"] = true
		out["message"] = resp.Message
		out["auth_url"] = resp.AuthURL
		return out
	}
	if resp.Report == nil {
		return out
	}
	raw, err := json.Marshal(resp.Report)
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}
	_ = json.Unmarshal(raw, &out)
	return out
}
