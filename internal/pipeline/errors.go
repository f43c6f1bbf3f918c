package pipeline

import (
	"errors"
	"net/http"

	"github.com/apiconduit/conduit/internal/circuitbreaker"
	"github.com/apiconduit/conduit/internal/crypto"
	"github.com/apiconduit/conduit/internal/egress"
	"github.com/apiconduit/conduit/internal/route"
	"github.com/apiconduit/conduit/internal/transform"
)

// Pipeline failure modes not owned by a collaborator package.
var (
	// ErrForbidden indicates the principal's roles do not satisfy the
	// route's requirements.
	ErrForbidden = errors.New("forbidden")

	// ErrConnectorInactive indicates the route's connector is disabled.
	ErrConnectorInactive = errors.New("connector inactive")

	// ErrUpstreamTimeout indicates the upstream call exceeded its
	// deadline. Counted as a breaker failure.
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// ErrUpstreamUnreachable indicates a connection-level upstream
	// failure. Counted as a breaker failure.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")

	// ErrBadRequestBody indicates the inbound body could not be parsed
	// for a configured request transform.
	ErrBadRequestBody = errors.New("request body is not valid JSON")

	// ErrRateLimited indicates the route's rate limit policy rejected
	// the request.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// StatusFor maps a pipeline error to the client-facing HTTP status.
// Unknown errors are treated as internal faults.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, route.ErrRouteNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrBadRequestBody):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, egress.ErrEgressBlocked):
		return http.StatusBadGateway
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrConnectorInactive):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUpstreamTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrUpstreamUnreachable):
		return http.StatusBadGateway
	case errors.Is(err, transform.ErrInvalidConfig):
		return http.StatusInternalServerError
	case errors.Is(err, crypto.ErrDecryptionFailed):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-safe description for an error.
// Internal detail never leaks to callers.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, route.ErrRouteNotFound):
		return "no matching route"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrBadRequestBody):
		return "request body is not valid JSON"
	case errors.Is(err, ErrRateLimited):
		return "rate limit exceeded"
	case errors.Is(err, egress.ErrEgressBlocked):
		return "upstream destination not allowed"
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return "upstream temporarily unavailable"
	case errors.Is(err, ErrConnectorInactive):
		return "upstream temporarily unavailable"
	case errors.Is(err, ErrUpstreamTimeout):
		return "upstream timeout"
	case errors.Is(err, ErrUpstreamUnreachable):
		return "upstream unavailable"
	default:
		return "internal error"
	}
}
