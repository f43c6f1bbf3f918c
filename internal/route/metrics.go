package route

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// routeResolutionsTotal counts route lookups by module and outcome.
	routeResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "route_resolutions_total",
			Help: "Total number of route resolutions",
		},
		[]string{"module", "result"},
	)
)

func recordResolution(module string, matched bool) {
	result := "matched"
	if !matched {
		result = "not_found"
	}
	routeResolutionsTotal.WithLabelValues(module, result).Inc()
}
