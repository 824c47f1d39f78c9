package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DependencyAttempts counts every attempt against an external dependency.
	DependencyAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_dependency_attempts_total",
			Help: "Total number of attempts made against external dependencies",
		},
		[]string{"dependency", "outcome"},
	)

	// DependencyRetries counts retries scheduled after a classified failure.
	DependencyRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_dependency_retries_total",
			Help: "Total number of retries scheduled per dependency and failure kind",
		},
		[]string{"dependency", "kind"},
	)

	// DependencyRecovered counts operations that succeeded after at least one retry.
	DependencyRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_dependency_recovered_total",
			Help: "Total number of operations that succeeded after retrying",
		},
		[]string{"dependency"},
	)

	// DependencyLatency tracks per-attempt latency.
	DependencyLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_dependency_latency_seconds",
			Help:    "Dependency attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"dependency"},
	)

	// CircuitState exposes the breaker phase per dependency (0 closed, 1 open, 2 half-open).
	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orchestrator_circuit_state",
			Help: "Circuit breaker phase per dependency (0 closed, 1 open, 2 half-open)",
		},
		[]string{"dependency"},
	)

	// CircuitRejections counts calls refused by an open breaker.
	CircuitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_circuit_rejections_total",
			Help: "Total number of calls rejected by an open circuit breaker",
		},
		[]string{"dependency"},
	)

	// TurnsTotal counts completed turns by response type and outcome.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_turns_total",
			Help: "Total number of conversation turns handled",
		},
		[]string{"response_type", "outcome"},
	)

	// TurnCostUSD accumulates estimated model spend.
	TurnCostUSD = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_model_cost_usd_total",
			Help: "Estimated model spend in USD",
		},
	)
)
