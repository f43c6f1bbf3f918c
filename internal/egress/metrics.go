package egress

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// egressValidationsTotal counts all URL validations.
	egressValidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "egress_validations_total",
			Help: "Total number of upstream URL validations",
		},
	)

	// egressBlockedTotal counts rejected URLs by reason.
	egressBlockedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "egress_blocked_total",
			Help: "Total number of upstream URLs rejected by the egress guard",
		},
		[]string{"reason"},
	)
)

func recordValidation() {
	egressValidationsTotal.Inc()
}

func recordBlocked(reason string) {
	egressBlockedTotal.WithLabelValues(reason).Inc()
}
