package route

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/apiconduit/conduit/internal/observability"
)

// ErrRouteNotFound indicates no active route matches the inbound
// request.
var ErrRouteNotFound = errors.New("no matching route")

// Provider supplies candidate routes. Backed by the route store; the
// resolver itself is read-only.
type Provider interface {
	// ListRoutes returns the routes registered for a module prefix and
	// method. Implementations may return inactive routes; the resolver
	// filters them.
	ListRoutes(ctx context.Context, module, method string) ([]*Route, error)
}

// Match is a resolved route plus the path parameters captured while
// matching it.
type Match struct {
	Route  *Route
	Params map[string]string
}

// Resolver selects the best matching route for an inbound request.
type Resolver struct {
	provider Provider
	logger   observability.Logger
}

// NewResolver creates a resolver over the given provider.
func NewResolver(provider Provider, logger observability.Logger) *Resolver {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Resolver{provider: provider, logger: logger}
}

// candidate pairs a matched route with its compiled pattern and params.
type candidate struct {
	route  *Route
	params map[string]string
	holes  int
}

// Resolve selects the single best active route for {module, path,
// method}. Selection order among pattern matches: highest priority,
// then fewest placeholders (most literal), then earliest creation and
// finally lexical route id so the result is a total order even under
// concurrent configuration changes.
func (r *Resolver) Resolve(ctx context.Context, module, path, method string) (*Match, error) {
	method = strings.ToUpper(method)

	routes, err := r.provider.ListRoutes(ctx, module, method)
	if err != nil {
		return nil, err
	}

	var candidates []candidate
	for _, rt := range routes {
		if !rt.Active || rt.Module != module || !strings.EqualFold(rt.Method, method) {
			continue
		}

		pattern, err := CompilePattern(rt.Pattern)
		if err != nil {
			// A malformed pattern disables the route rather than the
			// whole module.
			r.logger.Warn("skipping route with invalid pattern",
				observability.String("route", rt.ID),
				observability.String("pattern", rt.Pattern),
				observability.Error(err),
			)
			continue
		}

		matched, params := pattern.Match(path)
		if !matched {
			continue
		}
		candidates = append(candidates, candidate{route: rt, params: params, holes: pattern.ParamCount()})
	}

	if len(candidates) == 0 {
		recordResolution(module, false)
		return nil, ErrRouteNotFound
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.route.Priority != b.route.Priority {
			return a.route.Priority > b.route.Priority
		}
		if a.holes != b.holes {
			return a.holes < b.holes
		}
		if !a.route.CreatedAt.Equal(b.route.CreatedAt) {
			return a.route.CreatedAt.Before(b.route.CreatedAt)
		}
		return a.route.ID < b.route.ID
	})

	best := candidates[0]
	recordResolution(module, true)
	return &Match{Route: best.route, Params: best.params}, nil
}
