package pipeline

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_requests_total",
			Help: "Total number of proxied requests by module and status",
		},
		[]string{"module", "status"},
	)

	pipelineRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_request_duration_seconds",
			Help:    "End to end duration of proxied requests",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"module"},
	)
)

func recordRequest(module string, status int, duration time.Duration) {
	pipelineRequestsTotal.WithLabelValues(module, strconv.Itoa(status)).Inc()
	pipelineRequestDuration.WithLabelValues(module).Observe(duration.Seconds())
}
