package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// breakerCallsTotal counts calls through breakers by admission result.
	breakerCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_calls_total",
			Help: "Total number of calls through circuit breakers",
		},
		[]string{"connector", "result"},
	)

	// breakerFailuresTotal counts failures recorded by breakers.
	breakerFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures recorded by circuit breakers",
		},
		[]string{"connector"},
	)

	// breakerSuccessesTotal counts successes recorded by breakers.
	breakerSuccessesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_successes_total",
			Help: "Total number of successes recorded by circuit breakers",
		},
		[]string{"connector"},
	)

	// breakerStateChangesTotal counts state transitions.
	breakerStateChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Total number of circuit breaker state changes",
		},
		[]string{"connector", "from", "to"},
	)

	// breakerState is the current state per connector
	// (0=closed, 1=open, 2=half-open).
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=open, 2=half-open)",
		},
		[]string{"connector"},
	)
)

func recordCall(connector string, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "rejected"
	}
	breakerCallsTotal.WithLabelValues(connector, result).Inc()
}

func recordSuccess(connector string) {
	breakerSuccessesTotal.WithLabelValues(connector).Inc()
}

func recordFailure(connector string) {
	breakerFailuresTotal.WithLabelValues(connector).Inc()
}

func recordStateChange(connector string, from, to State) {
	breakerStateChangesTotal.WithLabelValues(connector, from.String(), to.String()).Inc()
	breakerState.WithLabelValues(connector).Set(float64(to))
}
