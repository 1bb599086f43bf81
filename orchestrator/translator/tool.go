// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package translator implements the translate_presentation tool: it copies a
// Google Slides presentation and replaces every text run of the copy with its
// model translation.
package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	gslides "google.golang.org/api/slides/v1"

	"github.com/fmind/slides-translator-agent/auth"
	"github.com/fmind/slides-translator-agent/common/usage"
	"github.com/fmind/slides-translator-agent/connectors/slides"
	"github.com/fmind/slides-translator-agent/orchestrator/history"
	"github.com/fmind/slides-translator-agent/orchestrator/llm/gemini"
	"github.com/fmind/slides-translator-agent/orchestrator/translate"
	"github.com/fmind/slides-translator-agent/shared/logger"
)

// Name is the function name the agent model calls.
const Name = "translate_presentation"

// recordTimeout bounds the history write made after a run ends.
const recordTimeout = 5 * time.Second

// Negotiator resolves user credentials.
type Negotiator interface {
	Negotiate(ctx context.Context, req auth.NegotiateRequest) (*auth.Result, error)
}

// Workspace is the Slides and Drive surface used by the tool.
type Workspace interface {
	GetPresentation(ctx context.Context, id string) (*gslides.Presentation, error)
	CopyPresentation(ctx context.Context, id, targetLanguage string) (*slides.CopiedPresentation, error)
	BatchUpdate(ctx context.Context, id string, requests []*gslides.Request, batchSize int, progress func(slides.BatchProgress)) (int, error)
}

// WorkspaceFactory builds a Workspace acting with the user's credentials.
type WorkspaceFactory func(ctx context.Context, ts oauth2.TokenSource) (Workspace, error)

// SlidesWorkspace is the WorkspaceFactory backed by the Google APIs.
func SlidesWorkspace(ctx context.Context, ts oauth2.TokenSource) (Workspace, error) {
	client, err := slides.NewClientFromTokenSource(ctx, ts)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// TextTranslator translates single texts with a model.
type TextTranslator interface {
	Translate(ctx context.Context, text, instructions string) (*gemini.Translation, error)
	Model() string
}

// Archiver stores finished reports.
type Archiver interface {
	Archive(ctx context.Context, userID, presentationID string, report interface{}) (string, error)
}

// Metrics receives run measurements. Implementations must be safe for
// concurrent use.
type Metrics interface {
	RunFinished(status string, duration time.Duration)
	ModelCall(model, status string)
	TextsTranslated(n int)
	OccurrencesChanged(n int)
}

type noopMetrics struct{}

func (noopMetrics) RunFinished(string, time.Duration) {}
func (noopMetrics) ModelCall(string, string)          {}
func (noopMetrics) TextsTranslated(int)               {}
func (noopMetrics) OccurrencesChanged(int)            {}

// ToolContext identifies the caller of a tool invocation.
type ToolContext struct {
	UserID       string
	SessionID    string
	InvocationID string
}

// Request holds the tool arguments.
type Request struct {
	PresentationID string `json:"presentation_id"`
	TargetLanguage string `json:"target_language"`
	SlidesContext  string `json:"slides_context,omitempty"`
	AuthCode       string `json:"auth_code,omitempty"`
}

// Report summarizes a finished translation.
type Report struct {
	RunID                    string  `json:"run_id"`
	NewPresentationURL       string  `json:"new_presentation_url"`
	NewPresentationID        string  `json:"new_presentation_id"`
	NewPresentationTitle     string  `json:"new_presentation_title"`
	SlidesCount              int     `json:"slides_count"`
	UniqueTextRunsFound      int     `json:"unique_text_runs_found"`
	TextRunsTranslated       int     `json:"text_runs_translated"`
	TextOccurrencesChanged   int     `json:"text_occurrences_changed"`
	EstimatedWordsTranslated int     `json:"estimated_words_translated"`
	TotalInputTokens         int     `json:"total_input_tokens"`
	TotalOutputTokens        int     `json:"total_output_tokens"`
	TotalCostUSD             float64 `json:"total_cost_usd"`
}

// Response is the tool result. Either Pending is set or Report is present.
type Response struct {
	Pending bool    `json:"pending,omitempty"`
	Message string  `json:"message,omitempty"`
	AuthURL string  `json:"auth_url,omitempty"`
	Report  *Report `json:"report,omitempty"`
}

// Options tune the pipeline.
type Options struct {
	Workers   int
	PerWorker int
	BatchSize int
}

// Deps are the collaborators of a Tool. Negotiator, Workspaces and
// Translator are required.
type Deps struct {
	Negotiator Negotiator
	Workspaces WorkspaceFactory
	Translator TextTranslator
	Pricing    *usage.PricingTable
	History    history.Repository
	Archiver   Archiver
	Metrics    Metrics
	Logger     *logger.Logger
}

// Tool runs presentation translations.
type Tool struct {
	negotiator Negotiator
	workspaces WorkspaceFactory
	translator TextTranslator
	pricing    *usage.PricingTable
	history    history.Repository
	archiver   Archiver
	metrics    Metrics
	log        *logger.Logger
	opts       Options
}

// NewTool creates the translation tool.
func NewTool(deps Deps, opts Options) (*Tool, error) {
	if deps.Negotiator == nil || deps.Workspaces == nil || deps.Translator == nil {
		return nil, errors.New("negotiator, workspaces and translator are required")
	}
	if deps.Pricing == nil {
		deps.Pricing = usage.NewPricingTable()
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.New("translator")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = slides.DefaultBatchSize
	}
	return &Tool{
		negotiator: deps.Negotiator,
		workspaces: deps.Workspaces,
		translator: deps.Translator,
		pricing:    deps.Pricing,
		history:    deps.History,
		archiver:   deps.Archiver,
		metrics:    deps.Metrics,
		log:        deps.Logger,
		opts:       opts,
	}, nil
}

// Validate normalizes the request and checks its arguments.
func (r *Request) Validate() error {
	id, err := slides.ParsePresentationID(r.PresentationID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	r.PresentationID = id
	r.TargetLanguage = strings.TrimSpace(r.TargetLanguage)
	if r.TargetLanguage == "" {
		return fmt.Errorf("%w: target language is required", ErrInvalidRequest)
	}
	r.SlidesContext = strings.TrimSpace(r.SlidesContext)
	return nil
}

// TranslatePresentation copies the presentation and translates the copy.
// It returns a pending Response when the user must authorize access first.
func (t *Tool) TranslatePresentation(ctx context.Context, tc ToolContext, req Request) (*Response, error) {
	start := time.Now()
	if tc.InvocationID == "" {
		tc.InvocationID = uuid.NewString()
	}
	if tc.UserID == "" {
		tc.UserID = "anonymous"
	}

	if err := req.Validate(); err != nil {
		t.metrics.RunFinished("invalid", time.Since(start))
		return nil, stepError(StepValidate, err)
	}

	log := t.log.With(map[string]interface{}{
		"user":         tc.UserID,
		"session":      tc.SessionID,
		"invocation":   tc.InvocationID,
		"presentation": req.PresentationID,
	})
	log.Info(tc.UserID, tc.InvocationID, "Translating presentation", map[string]interface{}{
		"target_language": req.TargetLanguage,
		"slides_context":  req.SlidesContext,
	})

	creds, err := t.negotiator.Negotiate(ctx, auth.NegotiateRequest{
		UserID:    tc.UserID,
		SessionID: tc.SessionID,
		RequestID: tc.InvocationID,
		AuthCode:  req.AuthCode,
	})
	if err != nil {
		t.metrics.RunFinished(history.StatusFailed, time.Since(start))
		return nil, stepError(StepAuth, err)
	}
	if creds.Pending {
		t.metrics.RunFinished("pending", time.Since(start))
		return &Response{Pending: true, Message: creds.Message, AuthURL: creds.AuthURL}, nil
	}

	run := &history.Run{
		ID:                   uuid.NewString(),
		UserID:               tc.UserID,
		SessionID:            tc.SessionID,
		InvocationID:         tc.InvocationID,
		SourcePresentationID: req.PresentationID,
		TargetLanguage:       req.TargetLanguage,
		CreatedAt:            start.UTC(),
	}

	report, err := t.run(ctx, log, tc, req, creds.TokenSource, run)
	run.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		run.Status = history.StatusFailed
		run.Error = err.Error()
		t.record(ctx, log, tc, run)
		t.metrics.RunFinished(history.StatusFailed, time.Since(start))
		log.ErrorWithCode(tc.UserID, tc.InvocationID, "Slides translation failed", 0, err, map[string]interface{}{
			"step": FailedStep(err),
		})
		return nil, err
	}

	run.Status = history.StatusSucceeded
	t.record(ctx, log, tc, run)
	t.archive(ctx, log, tc, report)
	t.metrics.RunFinished(history.StatusSucceeded, time.Since(start))

	log.InfoWithDuration(tc.UserID, tc.InvocationID, "Slides translation finished", float64(run.DurationMS), map[string]interface{}{
		"new_presentation_url": report.NewPresentationURL,
	})
	return &Response{Report: report}, nil
}

func (t *Tool) run(ctx context.Context, log *logger.Logger, tc ToolContext, req Request, ts oauth2.TokenSource, run *history.Run) (*Report, error) {
	log.Info(tc.UserID, tc.InvocationID, "Initializing Google API services", nil)
	ws, err := t.workspaces(ctx, ts)
	if err != nil {
		return nil, stepError(StepAuth, err)
	}

	copied, err := ws.CopyPresentation(ctx, req.PresentationID, req.TargetLanguage)
	if err != nil {
		return nil, stepError(StepCopy, err)
	}
	run.PresentationID = copied.ID
	run.PresentationURL = copied.URL
	run.PresentationTitle = copied.Title
	log.Info(tc.UserID, tc.InvocationID, "Copied presentation", map[string]interface{}{
		"new_presentation_id":    copied.ID,
		"new_presentation_title": copied.Title,
	})

	pres, err := ws.GetPresentation(ctx, copied.ID)
	if err != nil {
		return nil, stepError(StepExtract, err)
	}
	index := slides.ExtractTexts(pres)
	texts := index.Texts()
	run.SlidesCount = index.SlideCount()
	run.UniqueTexts = len(texts)
	log.Info(tc.UserID, tc.InvocationID, "Extracted text runs", map[string]interface{}{
		"slides":           index.SlideCount(),
		"slides_with_text": index.SlidesWithText(),
		"unique_texts":     len(texts),
	})

	report := &Report{
		RunID:                run.ID,
		NewPresentationURL:   copied.URL,
		NewPresentationID:    copied.ID,
		NewPresentationTitle: copied.Title,
		SlidesCount:          index.SlideCount(),
		UniqueTextRunsFound:  len(texts),
	}
	model := t.translator.Model()
	if len(texts) == 0 {
		summary := t.pricing.Summarize(model, nil)
		applyUsage(report, summary)
		return report, nil
	}

	instructions := gemini.BuildInstructions(req.TargetLanguage, req.SlidesContext)
	pool := translate.NewPool(t.opts.Workers, t.opts.PerWorker, log)
	outcome := pool.Translate(ctx, texts, func(ctx context.Context, text string) (*gemini.Translation, error) {
		tr, err := t.translator.Translate(ctx, text, instructions)
		if err != nil {
			t.metrics.ModelCall(model, "error")
			return nil, err
		}
		t.metrics.ModelCall(model, "ok")
		return tr, nil
	})
	if err := ctx.Err(); err != nil {
		return nil, stepError(StepTranslate, err)
	}
	t.metrics.TextsTranslated(len(outcome.Translations))
	report.TextRunsTranslated = len(outcome.Translations)
	report.EstimatedWordsTranslated = countWords(outcome.Translations)
	run.TextsTranslated = report.TextRunsTranslated

	summary := t.pricing.Summarize(model, outcome.Usages)
	applyUsage(report, summary)
	run.InputTokens = summary.TotalInputTokens
	run.OutputTokens = summary.TotalOutputTokens
	run.CostUSD = summary.TotalCostUSD

	requests := slides.BuildReplaceRequests(outcome.Translations, index)
	if collisions := slides.ReplaceCollisions(outcome.Translations, index); len(collisions) > 0 {
		log.Warn(tc.UserID, tc.InvocationID, "Some texts also match inside earlier translations", map[string]interface{}{
			"texts": collisions,
		})
	}
	log.Info(tc.UserID, tc.InvocationID, "Created change requests", map[string]interface{}{
		"requests": len(requests),
	})
	changed, err := ws.BatchUpdate(ctx, copied.ID, requests, t.opts.BatchSize, func(p slides.BatchProgress) {
		log.Info(tc.UserID, tc.InvocationID, "Applied batch", map[string]interface{}{
			"batch":    p.Batch,
			"batches":  p.Batches,
			"requests": p.Requests,
			"changes":  p.Changes,
		})
	})
	run.OccurrencesChanged = changed
	report.TextOccurrencesChanged = changed
	t.metrics.OccurrencesChanged(changed)
	if err != nil {
		return nil, stepError(StepUpdate, err)
	}

	log.Info(tc.UserID, tc.InvocationID, "Usage report", map[string]interface{}{
		"total_input_tokens":  summary.TotalInputTokens,
		"total_output_tokens": summary.TotalOutputTokens,
		"total_cost_usd":      usage.FormatUSD(summary.TotalCostUSD),
	})
	return report, nil
}

func applyUsage(report *Report, summary usage.Report) {
	report.TotalInputTokens = summary.TotalInputTokens
	report.TotalOutputTokens = summary.TotalOutputTokens
	report.TotalCostUSD = summary.TotalCostUSD
}

func countWords(translations map[string]string) int {
	words := 0
	for _, t := range translations {
		words += len(strings.Fields(t))
	}
	return words
}

// record saves the run. Failures are logged and ignored.
func (t *Tool) record(ctx context.Context, log *logger.Logger, tc ToolContext, run *history.Run) {
	if t.history == nil {
		return
	}
	// A cancelled run is still recorded.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := t.history.Save(ctx, run); err != nil {
		log.Warn(tc.UserID, tc.InvocationID, "Failed to record translation run", map[string]interface{}{
			"run_id": run.ID,
			"error":  err.Error(),
		})
	}
}

// archive uploads the report. Failures are logged and ignored.
func (t *Tool) archive(ctx context.Context, log *logger.Logger, tc ToolContext, report *Report) {
	if t.archiver == nil {
		return
	}
	if _, err := t.archiver.Archive(ctx, tc.UserID, report.NewPresentationID, report); err != nil {
		log.Warn(tc.UserID, tc.InvocationID, "Failed to archive report", map[string]interface{}{
			"run_id": report.RunID,
			"error":  err.Error(),
		})
	}
}
