// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync metrics
var (
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailpilot_sync_runs_total",
			Help: "Total number of mailbox sync runs",
		},
		[]string{"result"},
	)

	SyncFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailpilot_sync_fallbacks_total",
			Help: "Total number of full resyncs after an invalid cursor",
		},
	)

	MessagesIngestedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailpilot_messages_ingested_total",
			Help: "Total number of new messages stored by sync",
		},
	)
)

// Processing metrics
var (
	ProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailpilot_messages_processed_total",
			Help: "Total number of messages run through the pipeline, by outcome",
		},
		[]string{"outcome"},
	)

	ProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailpilot_processing_duration_seconds",
			Help:    "Time spent processing one message",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	GuardrailViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailpilot_guardrail_violations_total",
			Help: "Total number of guardrail violations, by type",
		},
		[]string{"type"},
	)

	ModelRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailpilot_model_requests_total",
			Help: "Total number of language model calls",
		},
		[]string{"operation", "result"},
	)
)

// Delivery and batch metrics
var (
	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailpilot_sends_total",
			Help: "Total number of outgoing send attempts",
		},
		[]string{"kind", "result"},
	)

	BatchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailpilot_batch_items_total",
			Help: "Total number of batch draft items, by result",
		},
		[]string{"result"},
	)

	BatchJobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailpilot_batch_jobs_active",
			Help: "Number of batch draft jobs currently running",
		},
	)
)

// Result label values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// ResultLabel maps an error to a result label
func ResultLabel(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
