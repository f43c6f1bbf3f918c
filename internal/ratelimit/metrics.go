package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rateLimitDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limit_decisions_total",
		Help: "Total number of rate limit admission decisions",
	},
	[]string{"backend", "decision"},
)

func recordDecision(backend string, allowed bool) {
	decision := "allowed"
	if !allowed {
		decision = "rejected"
	}
	rateLimitDecisionsTotal.WithLabelValues(backend, decision).Inc()
}
