// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package history records translation runs per user.
package history

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"

	// DefaultListLimit caps ListByUser when no limit is given.
	DefaultListLimit = 20
)

var (
	ErrNotFound  = errors.New("translation run not found")
	ErrDuplicate = errors.New("translation run already recorded")
)

// Run is one execution of the presentation translation tool.
type Run struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	SessionID            string    `json:"session_id,omitempty"`
	InvocationID         string    `json:"invocation_id,omitempty"`
	SourcePresentationID string    `json:"source_presentation_id"`
	PresentationID       string    `json:"new_presentation_id,omitempty"`
	PresentationURL      string    `json:"new_presentation_url,omitempty"`
	PresentationTitle    string    `json:"new_presentation_title,omitempty"`
	TargetLanguage       string    `json:"target_language"`
	Status               string    `json:"status"`
	Error                string    `json:"error,omitempty"`
	SlidesCount          int       `json:"slides_count"`
	UniqueTexts          int       `json:"unique_text_runs_found"`
	TextsTranslated      int       `json:"text_runs_translated"`
	OccurrencesChanged   int       `json:"text_occurrences_changed"`
	InputTokens          int       `json:"total_input_tokens"`
	OutputTokens         int       `json:"total_output_tokens"`
	CostUSD              float64   `json:"total_cost_usd"`
	DurationMS           int64     `json:"duration_ms"`
	CreatedAt            time.Time `json:"created_at"`
}

// Repository stores translation runs.
type Repository interface {
	Save(ctx context.Context, run *Run) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Run, error)
	Get(ctx context.Context, id string) (*Run, error)
	Ping(ctx context.Context) error
}

// prepare fills in the id and creation time of a new run.
func prepare(run *Run) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// MemoryRepository keeps runs in process memory.
type MemoryRepository struct {
	mu   sync.RWMutex
	runs map[string]Run
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{runs: make(map[string]Run)}
}

func (m *MemoryRepository) Save(_ context.Context, run *Run) error {
	prepare(run)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; ok {
		return ErrDuplicate
	}
	m.runs[run.ID] = *run
	return nil
}

// ListByUser returns the user's most recent runs first.
func (m *MemoryRepository) ListByUser(_ context.Context, userID string, limit int) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]Run, 0)
	for _, r := range m.runs {
		if r.UserID == userID {
			runs = append(runs, r)
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if limit = normalizeLimit(limit); len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *MemoryRepository) Ping(context.Context) error {
	return nil
}
