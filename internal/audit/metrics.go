package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	auditEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_total",
			Help: "Total number of audit events emitted",
		},
		[]string{"type", "action", "outcome"},
	)

	auditEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_events_dropped_total",
			Help: "Audit events dropped because the queue was full",
		},
	)
)

func recordEmitted(e *Event) {
	auditEventsTotal.WithLabelValues(string(e.Type), string(e.Action), string(e.Outcome)).Inc()
}

func recordDropped() {
	auditEventsDropped.Inc()
}
