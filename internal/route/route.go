// Package route implements route rules and their resolution: matching
// an inbound {module prefix, path, method} to the best active route and
// its owning connector.
package route

import (
	"time"

	"github.com/apiconduit/conduit/internal/transform"
)

// RateLimitPolicy caps request throughput for a single route.
type RateLimitPolicy struct {
	// RequestsPerSecond is the sustained rate. Zero disables the limit.
	RequestsPerSecond int `json:"requests_per_second" yaml:"requestsPerSecond"`

	// Burst is the token bucket size. Zero means RequestsPerSecond.
	Burst int `json:"burst" yaml:"burst"`
}

// Route maps an inbound method and path pattern to a connector and the
// policies applied while relaying through it.
type Route struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`

	// Module is the gateway module prefix the route belongs to, e.g.
	// "crm". Matched exactly against the inbound prefix.
	Module string `json:"module"`

	// Pattern is the inbound path pattern: literal segments or :name
	// placeholders capturing exactly one segment each.
	Pattern string `json:"pattern"`

	// Method is the inbound HTTP method, uppercase.
	Method string `json:"method"`

	ConnectorID string `json:"connector_id"`

	// UpstreamPath is the upstream path template; :name placeholders
	// are substituted with the segments captured from the inbound path.
	UpstreamPath string `json:"upstream_path"`

	// RequireAuth demands an authenticated principal whose roles
	// intersect AllowedRoles.
	RequireAuth  bool     `json:"require_auth"`
	AllowedRoles []string `json:"allowed_roles"`

	// Priority orders candidate routes; higher wins.
	Priority int `json:"priority"`

	Active bool `json:"active"`

	RequestTransform  []transform.Operation `json:"request_transform,omitempty"`
	ResponseTransform []transform.Operation `json:"response_transform,omitempty"`

	RateLimit *RateLimitPolicy `json:"rate_limit,omitempty"`

	// CreatedAt orders routes for the final resolution tiebreak.
	CreatedAt time.Time `json:"created_at"`
}
