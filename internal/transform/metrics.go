package transform

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// transformOperationsTotal counts applied operations by type.
	transformOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transform_operations_total",
			Help: "Total number of transform operations applied",
		},
		[]string{"op"},
	)

	// transformFailuresTotal counts rejected configs and failed applies.
	transformFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transform_failures_total",
			Help: "Total number of transform failures",
		},
		[]string{"stage"},
	)
)

func recordOp(op OpType) {
	transformOperationsTotal.WithLabelValues(string(op)).Inc()
}

func recordFailure(stage string) {
	transformFailuresTotal.WithLabelValues(stage).Inc()
}
