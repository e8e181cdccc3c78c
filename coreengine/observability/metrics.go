// Package observability provides Prometheus metrics instrumentation ambient
// to the Stage Primitive and the Agent Runtime. Stage and process authors
// never call into this package directly.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// STAGE METRICS
// =============================================================================

var (
	stageExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_pipeline_stage_executions_total",
			Help: "Total number of stage executions",
		},
		[]string{"agent", "stage", "outcome"}, // outcome: Success, Failure, Rejected
	)

	stageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_pipeline_stage_duration_seconds",
			Help:    "Stage execution duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"agent", "stage"},
	)
)

// =============================================================================
// MODEL METRICS
// =============================================================================

var (
	modelCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_pipeline_model_calls_total",
			Help: "Total number of model-backed process calls",
		},
		[]string{"agent", "model", "status"}, // status: success, error
	)

	modelDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_pipeline_model_duration_seconds",
			Help:    "Model call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"agent", "model"},
	)
)

// =============================================================================
// MESSAGE METRICS
// =============================================================================

var (
	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_pipeline_messages_total",
			Help: "Total number of messages processed by an agent's runtime loop",
		},
		[]string{"agent", "outcome"}, // outcome: Success, Failure, Rejected
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordStageExecution records one stage invocation's outcome and duration.
// Called by the Stage Primitive's logging wrapper after every invocation.
func RecordStageExecution(agent, stage, outcome string, durationMS int64) {
	stageExecutionsTotal.WithLabelValues(agent, stage, outcome).Inc()
	stageDurationSeconds.WithLabelValues(agent, stage).Observe(float64(durationMS) / 1000.0)
}

// RecordModelCall records one model-backed process attempt.
func RecordModelCall(agent, model, status string, durationMS int64) {
	modelCallsTotal.WithLabelValues(agent, model, status).Inc()
	modelDurationSeconds.WithLabelValues(agent, model).Observe(float64(durationMS) / 1000.0)
}

// RecordMessage records the terminal outcome of one message's full pipeline
// run. Called once per message by the Agent Runtime.
func RecordMessage(agent, outcome string) {
	messagesTotal.WithLabelValues(agent, outcome).Inc()
}
