package crypto

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// envelopeDecryptionsTotal counts envelope decryption attempts by result.
	// Failures are a security signal: they indicate tampered secrets, data
	// corruption, or a key mismatch after rotation.
	envelopeDecryptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envelope_decryptions_total",
			Help: "Total number of envelope decryption attempts",
		},
		[]string{"result"},
	)
)

func recordDecryptSuccess() {
	envelopeDecryptionsTotal.WithLabelValues("success").Inc()
}

func recordDecryptFailure() {
	envelopeDecryptionsTotal.WithLabelValues("failure").Inc()
}
