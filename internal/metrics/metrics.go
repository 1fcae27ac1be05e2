// Package metrics holds the prometheus collectors of the scheduler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FiringsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "datafire_firings_claimed_total",
		Help: "Scheduled instants claimed by the scheduler.",
	})

	FiringsAbandoned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datafire_firings_abandoned_total",
		Help: "Claimed firings dropped before dispatch.",
	}, []string{"reason"}) // reason: cancelled, stopped

	Executions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datafire_executions_total",
		Help: "Dispatched batches by kind and outcome.",
	}, []string{"kind", "outcome"}) // outcome: success, transport, auth, application

	ExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datafire_execution_duration_seconds",
		Help:    "Time from dispatch to agent response.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"kind"})

	FiringLag = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "datafire_firing_lag_seconds",
		Help:    "Delay between the scheduled instant and the actual dispatch.",
		Buckets: prometheus.LinearBuckets(0, 0.05, 20),
	})

	AutoStops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "datafire_auto_stops_total",
		Help: "Tasks stopped by the consecutive failure rule.",
	})

	TickErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "datafire_tick_errors_total",
		Help: "Scheduler ticks that failed to list running tasks.",
	})

	PendingClaims = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "datafire_pending_claims",
		Help: "Claims currently held by the scheduler.",
	})

	AgentsOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "datafire_agents_online",
		Help: "Agents that passed their last health check.",
	})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
