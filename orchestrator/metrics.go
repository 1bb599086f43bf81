// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slides_translator_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slides_translator_http_request_duration_milliseconds",
			Help:    "HTTP request duration in milliseconds",
			Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000},
		},
		[]string{"route"},
	)
	promRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slides_translator_runs_total",
			Help: "Total number of translation tool runs by status",
		},
		[]string{"status"},
	)
	promRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slides_translator_run_duration_seconds",
			Help:    "Translation tool run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)
	promTextsTranslated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slides_translator_texts_translated_total",
			Help: "Total number of unique text runs translated",
		},
	)
	promModelCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slides_translator_model_calls_total",
			Help: "Total number of translation model calls",
		},
		[]string{"model", "status"},
	)
	promOccurrencesChanged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slides_translator_occurrences_changed_total",
			Help: "Total number of text occurrences replaced in presentations",
		},
	)
)

func init() {
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promRuns)
	prometheus.MustRegister(promRunDuration)
	prometheus.MustRegister(promTextsTranslated)
	prometheus.MustRegister(promModelCalls)
	prometheus.MustRegister(promOccurrencesChanged)
}

// PrometheusMetrics records translation runs in the process registry.
type PrometheusMetrics struct{}

func (PrometheusMetrics) RunFinished(status string, duration time.Duration) {
	promRuns.WithLabelValues(status).Inc()
	promRunDuration.Observe(duration.Seconds())
}

func (PrometheusMetrics) ModelCall(model, status string) {
	promModelCalls.WithLabelValues(model, status).Inc()
}

func (PrometheusMetrics) TextsTranslated(n int) {
	promTextsTranslated.Add(float64(n))
}

func (PrometheusMetrics) OccurrencesChanged(n int) {
	promOccurrencesChanged.Add(float64(n))
}
