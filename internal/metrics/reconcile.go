// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconcileRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threadwarden_reconcile_runs_total",
		Help: "Reconciliation runs by result",
	}, []string{"result"}) // result=completed|source_unavailable|precondition_unresolved|rejected_in_flight

	reconcileOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threadwarden_reconcile_outcomes_total",
		Help: "Per-record reconciliation outcomes by status",
	}, []string{"status"})

	reconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "threadwarden_reconcile_duration_seconds",
		Help:    "Wall-clock duration of completed reconciliation runs",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	reconcileLastCompleted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "threadwarden_reconcile_last_completed_timestamp_seconds",
		Help: "Unix time of the last reconciliation run that reached the record loop",
	})

	changelistRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "threadwarden_changelist_rows",
		Help: "Rows in the change list at the last validation, by classification",
	}, []string{"kind"}) // kind=total|invalid|due
)

// RecordReconcileRun counts a run by result.
func RecordReconcileRun(result string) {
	reconcileRunsTotal.WithLabelValues(result).Inc()
}

// RecordReconcileOutcome counts one per-record outcome.
func RecordReconcileOutcome(status string) {
	reconcileOutcomesTotal.WithLabelValues(status).Inc()
}

// ObserveReconcileDuration records the duration of a completed run and marks
// its completion time.
func ObserveReconcileDuration(seconds float64, completedUnix float64) {
	reconcileDuration.Observe(seconds)
	reconcileLastCompleted.Set(completedUnix)
}

// SetChangelistRows publishes the latest change-list validation summary.
func SetChangelistRows(total, invalid, due int) {
	changelistRows.WithLabelValues("total").Set(float64(total))
	changelistRows.WithLabelValues("invalid").Set(float64(invalid))
	changelistRows.WithLabelValues("due").Set(float64(due))
}
