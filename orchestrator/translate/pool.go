// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package translate runs text translations concurrently with bounded
// parallelism.
package translate

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fmind/slides-translator-agent/common/usage"
	"github.com/fmind/slides-translator-agent/orchestrator/llm/gemini"
	"github.com/fmind/slides-translator-agent/shared/logger"
)

const (
	DefaultWorkers   = 10
	DefaultPerWorker = 20
)

// Func translates a single text.
type Func func(ctx context.Context, text string) (*gemini.Translation, error)

// Outcome collects the results of a pool run.
type Outcome struct {
	// Translations maps source text to its translation. Failed texts are absent.
	Translations map[string]string
	Usages       []usage.TokenUsage
	// Failed lists texts left untranslated, in input order.
	Failed   []string
	Duration time.Duration
}

// Pool splits texts into chunks of PerWorker and translates up to Workers
// chunks at a time. Texts inside a chunk are translated concurrently.
type Pool struct {
	Workers   int
	PerWorker int

	log *logger.Logger
}

// NewPool creates a pool. Non-positive sizes fall back to the defaults.
func NewPool(workers, perWorker int, log *logger.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if perWorker <= 0 {
		perWorker = DefaultPerWorker
	}
	if log == nil {
		log = logger.New("translate")
	}
	return &Pool{Workers: workers, PerWorker: perWorker, log: log}
}

type result struct {
	translation *gemini.Translation
	err         error
	done        bool
}

// Translate runs fn over every text. Individual failures are logged and
// reported in Outcome.Failed. Once ctx is done no new translations start.
func (p *Pool) Translate(ctx context.Context, texts []string, fn Func) *Outcome {
	start := time.Now()
	total := len(texts)
	results := make([]result, total)
	var completed atomic.Int64

	chunks := Chunk(len(texts), p.PerWorker)
	p.log.Info("", "", "Starting translations", map[string]interface{}{
		"texts":      total,
		"chunks":     len(chunks),
		"workers":    p.Workers,
		"per_worker": p.PerWorker,
	})

	var workers errgroup.Group
	workers.SetLimit(p.Workers)
	for _, bounds := range chunks {
		if ctx.Err() != nil {
			break
		}
		lo, hi := bounds[0], bounds[1]
		workers.Go(func() error {
			var inner errgroup.Group
			inner.SetLimit(p.PerWorker)
			for i := lo; i < hi; i++ {
				if ctx.Err() != nil {
					break
				}
				inner.Go(func() error {
					tr, err := fn(ctx, texts[i])
					results[i] = result{translation: tr, err: err, done: true}
					n := completed.Add(1)
					if err != nil {
						p.log.Warn("", "", "Translation failed", map[string]interface{}{
							"index": i,
							"error": err.Error(),
						})
						return nil
					}
					p.log.Debug("", "", "Translated text", map[string]interface{}{
						"completed": n,
						"total":     total,
					})
					return nil
				})
			}
			return inner.Wait()
		})
	}
	_ = workers.Wait()

	outcome := collect(texts, results)
	outcome.Duration = time.Since(start)
	p.log.InfoWithDuration("", "", "Translations finished", float64(outcome.Duration.Milliseconds()), map[string]interface{}{
		"translated": len(outcome.Translations),
		"failed":     len(outcome.Failed),
		"total":      total,
	})
	return outcome
}

func collect(texts []string, results []result) *Outcome {
	outcome := &Outcome{Translations: make(map[string]string, len(texts))}
	for i, r := range results {
		if !r.done || r.err != nil || r.translation == nil || r.translation.Text == "" {
			outcome.Failed = append(outcome.Failed, texts[i])
			continue
		}
		outcome.Translations[texts[i]] = r.translation.Text
		outcome.Usages = append(outcome.Usages, r.translation.Usage)
	}
	return outcome
}

// Chunk splits n items into [lo, hi) ranges of at most size items.
func Chunk(n, size int) [][2]int {
	if n <= 0 {
		return nil
	}
	if size <= 0 {
		size = n
	}
	chunks := make([][2]int, 0, (n+size-1)/size)
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		chunks = append(chunks, [2]int{lo, hi})
	}
	return chunks
}
