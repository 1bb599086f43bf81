// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package history

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun(user string, created time.Time) *Run {
	return &Run{
		UserID:               user,
		SessionID:            "session-1",
		SourcePresentationID: "src-presentation-id",
		PresentationID:       "new-presentation-id",
		PresentationURL:      "https://docs.google.com/presentation/d/new-presentation-id/edit",
		PresentationTitle:    "Deck (French)",
		TargetLanguage:       "French",
		Status:               StatusSucceeded,
		SlidesCount:          4,
		UniqueTexts:          12,
		TextsTranslated:      11,
		OccurrencesChanged:   15,
		InputTokens:          900,
		OutputTokens:         300,
		CostUSD:              0.00102,
		DurationMS:           4200,
		CreatedAt:            created,
	}
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first := sampleRun("alice", base)
	second := sampleRun("alice", base.Add(time.Minute))
	other := sampleRun("bob", base)

	for _, r := range []*Run{first, second, other} {
		require.NoError(t, repo.Save(ctx, r))
		assert.NotEmpty(t, r.ID)
	}

	runs, err := repo.ListByUser(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID, "newest first")
	assert.Equal(t, first.ID, runs[1].ID)

	runs, err = repo.ListByUser(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	runs, err = repo.ListByUser(ctx, "nobody", 5)
	require.NoError(t, err)
	assert.Empty(t, runs)

	got, err := repo.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.UserID)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.Save(ctx, first), ErrDuplicate)
	assert.NoError(t, repo.Ping(ctx))
}

func TestPrepareSetsDefaults(t *testing.T) {
	run := &Run{}
	prepare(run)
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())

	fixed := &Run{ID: "fixed", CreatedAt: time.Unix(10, 0)}
	prepare(fixed)
	assert.Equal(t, "fixed", fixed.ID)
	assert.Equal(t, time.Unix(10, 0), fixed.CreatedAt)
}

func anyArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

func runRows(runs ...*Run) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "session_id", "invocation_id", "source_presentation_id",
		"presentation_id", "presentation_url", "presentation_title", "target_language",
		"status", "error", "slides_count", "unique_texts", "texts_translated",
		"occurrences_changed", "input_tokens", "output_tokens", "cost_usd", "duration_ms",
		"created_at",
	})
	for _, r := range runs {
		rows.AddRow(
			r.ID, r.UserID, r.SessionID, r.InvocationID, r.SourcePresentationID,
			r.PresentationID, r.PresentationURL, r.PresentationTitle, r.TargetLanguage,
			r.Status, r.Error, r.SlidesCount, r.UniqueTexts, r.TextsTranslated,
			r.OccurrencesChanged, r.InputTokens, r.OutputTokens, r.CostUSD, r.DurationMS,
			r.CreatedAt,
		)
	}
	return rows
}

func TestPostgresRepository_Migrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS translation_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPostgresRepository(db)
	require.NoError(t, repo.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Save(t *testing.T) {
	tests := []struct {
		name      string
		execErr   error
		wantErr   bool
		duplicate bool
	}{
		{name: "inserted"},
		{name: "duplicate key", execErr: &pq.Error{Code: uniqueViolation}, wantErr: true, duplicate: true},
		{name: "database down", execErr: errors.New("connection refused"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			exec := mock.ExpectExec("INSERT INTO translation_runs").WithArgs(anyArgs(20)...)
			if tt.execErr != nil {
				exec.WillReturnError(tt.execErr)
			} else {
				exec.WillReturnResult(sqlmock.NewResult(1, 1))
			}

			run := sampleRun("alice", time.Time{})
			err = NewPostgresRepository(db).Save(context.Background(), run)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.duplicate, errors.Is(err, ErrDuplicate))
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, run.ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepository_ListByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := sampleRun("alice", created.Add(time.Minute))
	a.ID = "run-2"
	b := sampleRun("alice", created)
	b.ID = "run-1"

	mock.ExpectQuery("SELECT (.+) FROM translation_runs WHERE user_id = \\$1").
		WithArgs("alice", DefaultListLimit).
		WillReturnRows(runRows(a, b))

	runs, err := NewPostgresRepository(db).ListByUser(context.Background(), "alice", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, 15, runs[0].OccurrencesChanged)
	assert.Equal(t, "French", runs[1].TargetLanguage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	run := sampleRun("alice", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	run.ID = "run-1"

	mock.ExpectQuery("SELECT (.+) FROM translation_runs WHERE id = \\$1").
		WithArgs("run-1").
		WillReturnRows(runRows(run))
	mock.ExpectQuery("SELECT (.+) FROM translation_runs WHERE id = \\$1").
		WithArgs("missing").
		WillReturnRows(runRows())

	repo := NewPostgresRepository(db)

	got, err := repo.Get(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "Deck (French)", got.PresentationTitle)
	assert.InDelta(t, 0.00102, got.CostUSD, 1e-9)

	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	assert.NoError(t, NewPostgresRepository(db).Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
