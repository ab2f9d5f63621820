// Package observability provides Prometheus metrics instrumentation for the refinery.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// SESSION METRICS
// =============================================================================

var (
	sessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refinery_sessions_total",
			Help: "Total number of completed refinement sessions",
		},
		[]string{"completion_reason"}, // approved, max_turns_exhausted, error
	)

	sessionDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "refinery_session_duration_seconds",
			Help:    "Refinement session duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	turnsPerSession = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "refinery_session_turns",
			Help:    "Number of turns used per session",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		},
	)

	turnDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "refinery_turn_duration_seconds",
			Help:    "Duration of one proposer/critic exchange in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
)

// =============================================================================
// ADMISSION METRICS
// =============================================================================

var (
	admissionInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "refinery_admission_in_flight",
			Help: "Number of admission slots currently occupied",
		},
	)

	admissionOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refinery_admission_outcomes_total",
			Help: "Terminal admission outcomes",
		},
		[]string{"state"}, // DONE, ERROR, TIMED_OUT, OVERFLOW
	)
)

// =============================================================================
// LLM METRICS
// =============================================================================

var (
	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refinery_llm_calls_total",
			Help: "Total number of backend calls by role",
		},
		[]string{"role", "model", "status"}, // status: success, error
	)

	llmDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refinery_llm_duration_seconds",
			Help:    "Backend call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"role", "model"},
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordSession records a finished session.
func RecordSession(reason string, turns int, durationMS int) {
	sessionsTotal.WithLabelValues(reason).Inc()
	sessionDurationSeconds.Observe(float64(durationMS) / 1000.0)
	turnsPerSession.Observe(float64(turns))
}

// RecordTurn records one completed turn.
func RecordTurn(durationMS int) {
	turnDurationSeconds.Observe(float64(durationMS) / 1000.0)
}

// SetInFlight publishes the current number of occupied slots.
func SetInFlight(n int) {
	admissionInFlight.Set(float64(n))
}

// RecordAdmissionOutcome records a terminal admission state.
func RecordAdmissionOutcome(state string) {
	admissionOutcomesTotal.WithLabelValues(state).Inc()
}

// RecordLLMCall records one backend call.
func RecordLLMCall(role string, model string, status string, durationMS int) {
	llmCallsTotal.WithLabelValues(role, model, status).Inc()
	llmDurationSeconds.WithLabelValues(role, model).Observe(float64(durationMS) / 1000.0)
}
