// Package metrics provides Prometheus instrumentation for the matchmaker:
// counters for pairing transitions and notification delivery, and sweeper
// pass timing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Transitions counts committed pairing transitions, labeled by kind:
	// "like", "mutual_like", "confirm", "paired", "reject", "expire",
	// "unpair_request", "unpair_cancel", "unpair_approve", "unpair_deny",
	// "unpair_auto_approve", "force_unpair", "ban", "unban", "delete",
	// "approve", "reject_profile", "search_expanded".
	Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matchmaker_transitions_total",
		Help: "Committed pairing state transitions",
	}, []string{"kind"})

	// Notifications counts outbound notification attempts by result:
	// "delivered" or "failed".
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matchmaker_notifications_total",
		Help: "Outbound notification attempts",
	}, []string{"result"})

	// SweepDuration records how long one sweeper pass takes.
	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "matchmaker_sweep_duration_seconds",
		Help:    "Duration of one timeout sweeper pass",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})

	// SweepResolved counts records resolved by the sweeper, labeled by
	// kind: "match_expired" or "unpair_auto_approved".
	SweepResolved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matchmaker_sweep_resolved_total",
		Help: "Records auto-resolved by the timeout sweeper",
	}, []string{"kind"})

	// SweepErrors counts per-record failures inside a sweeper pass.
	SweepErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matchmaker_sweep_errors_total",
		Help: "Per-record failures during sweeper passes",
	})
)

func init() {
	prometheus.MustRegister(
		Transitions,
		Notifications,
		SweepDuration,
		SweepResolved,
		SweepErrors,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
