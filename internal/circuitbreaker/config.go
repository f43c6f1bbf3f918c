// Package circuitbreaker isolates failing upstream connectors. Each
// connector gets an in-memory CLOSED/OPEN/HALF_OPEN state machine; state
// is per process, so replicas converge on upstream health independently
// rather than through shared coordination.
package circuitbreaker

import (
	"time"
)

// Config holds configuration for a circuit breaker.
type Config struct {
	// FailureThreshold is the number of failures within the window that
	// opens the circuit.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before a trial
	// call is allowed through (half-open).
	ResetTimeout time.Duration

	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the circuit again.
	SuccessThreshold int

	// HalfOpenMax is the maximum number of trial calls admitted while
	// half-open.
	HalfOpenMax int

	// Window is the sampling window for the failure counter while
	// closed. Failures older than the window are forgotten.
	Window time.Duration

	// Disabled turns the breaker into a pass-through: calls are never
	// rejected and no state is tracked. Per-connector opt-out.
	Disabled bool

	// OnStateChange is called after every state transition.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		SuccessThreshold: 2,
		HalfOpenMax:      1,
		Window:           time.Minute,
	}
}

// withDefaults fills zero values from DefaultConfig. The original config
// is not modified.
func (c *Config) withDefaults() *Config {
	out := *c
	defaults := DefaultConfig()
	if out.FailureThreshold < 1 {
		out.FailureThreshold = defaults.FailureThreshold
	}
	if out.ResetTimeout <= 0 {
		out.ResetTimeout = defaults.ResetTimeout
	}
	if out.SuccessThreshold < 1 {
		out.SuccessThreshold = defaults.SuccessThreshold
	}
	if out.HalfOpenMax < 1 {
		out.HalfOpenMax = defaults.HalfOpenMax
	}
	if out.Window <= 0 {
		out.Window = defaults.Window
	}
	return &out
}
