// Package metrics provides Prometheus metrics for the notes server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "notes"

// Dispatch results.
const (
	ResultDelivered = "delivered"
	ResultSkipped   = "skipped"
	ResultRetry     = "retry"
	ResultFailed    = "failed"
)

// Reconciliation variants and results.
const (
	VariantWorkflow  = "workflow"
	VariantProcessor = "processor"

	ResultApplied      = "applied"
	ResultRejected     = "rejected"
	ResultNotFound     = "not_found"
	ResultError        = "error"
	ResultUnauthorized = "unauthorized"
)

var (
	// DispatchAttemptsTotal counts outbox delivery attempts by result.
	DispatchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_attempts_total",
			Help:      "Total number of enrichment dispatch attempts",
		},
		[]string{"result"},
	)

	// DispatchDuration measures webhook delivery latency.
	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of enrichment webhook deliveries in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// OutboxPending tracks entries awaiting delivery.
	OutboxPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_pending",
			Help:      "Number of outbox entries pending or in flight",
		},
	)

	// ReconcileTotal counts processor callbacks by variant and result.
	ReconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_total",
			Help:      "Total number of enrichment callbacks",
		},
		[]string{"variant", "result"},
	)

	// NotesCreatedTotal counts captured notes by type.
	NotesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "created_total",
			Help:      "Total number of notes captured",
		},
		[]string{"type"},
	)

	// SSEClients tracks connected event stream clients.
	SSEClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sse_clients",
			Help:      "Number of connected event stream clients",
		},
	)
)

// RecordDispatch records one delivery attempt.
func RecordDispatch(result string, duration time.Duration) {
	DispatchAttemptsTotal.WithLabelValues(result).Inc()
	if duration > 0 {
		DispatchDuration.Observe(duration.Seconds())
	}
}

// RecordReconcile records one callback outcome.
func RecordReconcile(variant, result string) {
	ReconcileTotal.WithLabelValues(variant, result).Inc()
}

// RecordNoteCreated records a captured note.
func RecordNoteCreated(noteType string) {
	NotesCreatedTotal.WithLabelValues(noteType).Inc()
}

// SetOutboxPending sets the outbox backlog gauge.
func SetOutboxPending(n int) {
	OutboxPending.Set(float64(n))
}

// SetSSEClients sets the connected client gauge.
func SetSSEClients(n int) {
	SSEClients.Set(float64(n))
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
