// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// uniqueViolation is the Postgres SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS translation_runs (
	id                     TEXT PRIMARY KEY,
	user_id                TEXT NOT NULL,
	session_id             TEXT NOT NULL DEFAULT '',
	invocation_id          TEXT NOT NULL DEFAULT '',
	source_presentation_id TEXT NOT NULL,
	presentation_id        TEXT NOT NULL DEFAULT '',
	presentation_url       TEXT NOT NULL DEFAULT '',
	presentation_title     TEXT NOT NULL DEFAULT '',
	target_language        TEXT NOT NULL,
	status                 TEXT NOT NULL,
	error                  TEXT NOT NULL DEFAULT '',
	slides_count           INTEGER NOT NULL DEFAULT 0,
	unique_texts           INTEGER NOT NULL DEFAULT 0,
	texts_translated       INTEGER NOT NULL DEFAULT 0,
	occurrences_changed    INTEGER NOT NULL DEFAULT 0,
	input_tokens           BIGINT NOT NULL DEFAULT 0,
	output_tokens          BIGINT NOT NULL DEFAULT 0,
	cost_usd               DOUBLE PRECISION NOT NULL DEFAULT 0,
	duration_ms            BIGINT NOT NULL DEFAULT 0,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_translation_runs_user_created
	ON translation_runs (user_id, created_at DESC);
`

const runColumns = `id, user_id, session_id, invocation_id, source_presentation_id,
	presentation_id, presentation_url, presentation_title, target_language,
	status, error, slides_count, unique_texts, texts_translated,
	occurrences_changed, input_tokens, output_tokens, cost_usd, duration_ms,
	created_at`

// PostgresRepository stores runs in the translation_runs table.
type PostgresRepository struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// NewPostgresRepository creates a repository over db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the schema if needed.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate translation_runs: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Save(ctx context.Context, run *Run) error {
	prepare(run)
	query := `INSERT INTO translation_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.UserID, run.SessionID, run.InvocationID, run.SourcePresentationID,
		run.PresentationID, run.PresentationURL, run.PresentationTitle, run.TargetLanguage,
		run.Status, run.Error, run.SlidesCount, run.UniqueTexts, run.TextsTranslated,
		run.OccurrencesChanged, run.InputTokens, run.OutputTokens, run.CostUSD, run.DurationMS,
		run.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to save translation run: %w", err)
	}
	return nil
}

// ListByUser returns the user's most recent runs first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + `
		FROM translation_runs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list translation runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate translation runs: %w", err)
	}
	return runs, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM translation_runs WHERE id = $1`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	err := s.Scan(
		&run.ID, &run.UserID, &run.SessionID, &run.InvocationID, &run.SourcePresentationID,
		&run.PresentationID, &run.PresentationURL, &run.PresentationTitle, &run.TargetLanguage,
		&run.Status, &run.Error, &run.SlidesCount, &run.UniqueTexts, &run.TextsTranslated,
		&run.OccurrencesChanged, &run.InputTokens, &run.OutputTokens, &run.CostUSD, &run.DurationMS,
		&run.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan translation run: %w", err)
	}
	return &run, nil
}
