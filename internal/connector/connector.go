// Package connector defines the upstream connector model: a registered
// API (REST, GraphQL, SOAP or custom) with its connection, auth and
// resilience configuration. Connectors are administered out of band;
// the proxy pipeline only ever reads an immutable snapshot.
package connector

import (
	"time"

	"github.com/apiconduit/conduit/internal/circuitbreaker"
)

// Kind is the upstream API style.
type Kind string

// Connector kinds.
const (
	KindREST    Kind = "rest"
	KindGraphQL Kind = "graphql"
	KindSOAP    Kind = "soap"
	KindCustom  Kind = "custom"
)

// AuthKind is how the gateway authenticates to the upstream.
type AuthKind string

// Upstream auth kinds.
const (
	AuthNone   AuthKind = "none"
	AuthAPIKey AuthKind = "api-key"
	AuthBearer AuthKind = "bearer"
	AuthBasic  AuthKind = "basic"
	AuthOAuth2 AuthKind = "oauth2"
	AuthCustom AuthKind = "custom"
)

// RequiresSecret reports whether this auth kind needs decrypted
// credential material before calling the upstream.
func (k AuthKind) RequiresSecret() bool {
	return k != AuthNone && k != ""
}

// Resilience holds per-connector failure-isolation settings.
type Resilience struct {
	// FailureThreshold opens the breaker after this many failures
	// within the window. Zero means the gateway default.
	FailureThreshold int `json:"failure_threshold" yaml:"failureThreshold"`

	// ResetTimeout is how long the breaker stays open. Zero means the
	// gateway default.
	ResetTimeout time.Duration `json:"reset_timeout" yaml:"resetTimeout"`

	// SuccessThreshold closes a half-open breaker after this many
	// consecutive successes. Zero means the gateway default.
	SuccessThreshold int `json:"success_threshold" yaml:"successThreshold"`

	// BreakerDisabled opts this connector out of circuit breaking.
	BreakerDisabled bool `json:"breaker_disabled" yaml:"breakerDisabled"`
}

// Connector is a registered upstream API. Owned by exactly one tenant.
type Connector struct {
	ID         string        `json:"id"`
	TenantID   string        `json:"tenant_id"`
	Name       string        `json:"name"`
	Kind       Kind          `json:"kind"`
	BaseURL    string        `json:"base_url"`
	AuthKind   AuthKind      `json:"auth_kind"`
	Timeout    time.Duration `json:"timeout"`
	Active     bool          `json:"active"`
	Resilience Resilience    `json:"resilience"`
}

// BreakerConfig translates the connector's resilience settings into a
// breaker config, falling back to the given defaults for zero values.
func (c *Connector) BreakerConfig(defaults *circuitbreaker.Config) *circuitbreaker.Config {
	if defaults == nil {
		defaults = circuitbreaker.DefaultConfig()
	}

	cfg := *defaults
	if c.Resilience.FailureThreshold > 0 {
		cfg.FailureThreshold = c.Resilience.FailureThreshold
	}
	if c.Resilience.ResetTimeout > 0 {
		cfg.ResetTimeout = c.Resilience.ResetTimeout
	}
	if c.Resilience.SuccessThreshold > 0 {
		cfg.SuccessThreshold = c.Resilience.SuccessThreshold
	}
	cfg.Disabled = c.Resilience.BreakerDisabled
	return &cfg
}

// RequestTimeout returns the per-request timeout, falling back to the
// given default when unset.
func (c *Connector) RequestTimeout(fallback time.Duration) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return fallback
}
