package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	IntentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_intents_created_total",
		Help: "The total number of route intents created",
	}, []string{"from_chain", "to_chain"})

	IntentsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_intents_submitted_total",
		Help: "The total number of route intents submitted on-chain",
	}, []string{"from_chain"})

	IntentsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_intents_settled_total",
		Help: "The total number of route intents that reached a terminal status",
	}, []string{"from_chain", "status", "reason"})

	QuoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_quote_requests_total",
		Help: "Quote client calls by outcome",
	}, []string{"outcome"})

	SubmissionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_submission_errors_total",
		Help: "Wallet submission failures by error kind",
	}, []string{"from_chain", "kind"})

	TrackingPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_tracking_polls_total",
		Help: "Status client polls by chain and leg",
	}, []string{"chain_id", "leg"})

	TrackingPollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_tracking_poll_errors_total",
		Help: "Transient status poll failures by chain",
	}, []string{"chain_id"})

	TrackingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bridge_tracking_duration_seconds",
		Help:    "Time from submission to terminal status",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68m
	}, []string{"from_chain", "status"})

	ActiveTrackers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_active_trackers",
		Help: "The number of tracking sessions currently running",
	})

	CircuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_circuit_breaker_trips_total",
		Help: "Circuit breaker trips by chain",
	}, []string{"chain_id"})

	DiscardedUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_discarded_updates_total",
		Help: "Late tracker updates discarded because the record was already terminal",
	}, []string{"chain_id"})
)
