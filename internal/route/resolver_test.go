package route

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProvider struct {
	routes []*Route
	err    error
}

func (p *staticProvider) ListRoutes(_ context.Context, _, _ string) ([]*Route, error) {
	return p.routes, p.err
}

func newRoute(id, pattern string, priority int, created time.Time) *Route {
	return &Route{
		ID:        id,
		Module:    "crm",
		Pattern:   pattern,
		Method:    "GET",
		Priority:  priority,
		Active:    true,
		CreatedAt: created,
	}
}

func TestResolver_Resolve(t *testing.T) {
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	t.Run("no routes", func(t *testing.T) {
		r := NewResolver(&staticProvider{}, nil)
		_, err := r.Resolve(context.Background(), "crm", "/users/42", "GET")
		assert.ErrorIs(t, err, ErrRouteNotFound)
	})

	t.Run("provider error", func(t *testing.T) {
		provErr := errors.New("store down")
		r := NewResolver(&staticProvider{err: provErr}, nil)
		_, err := r.Resolve(context.Background(), "crm", "/users/42", "GET")
		assert.ErrorIs(t, err, provErr)
	})

	t.Run("captures params", func(t *testing.T) {
		r := NewResolver(&staticProvider{routes: []*Route{
			newRoute("r1", "/users/:id", 0, base),
		}}, nil)

		m, err := r.Resolve(context.Background(), "crm", "/users/42", "get")
		require.NoError(t, err)
		assert.Equal(t, "r1", m.Route.ID)
		assert.Equal(t, map[string]string{"id": "42"}, m.Params)
	})

	t.Run("literal beats placeholder at equal priority", func(t *testing.T) {
		r := NewResolver(&staticProvider{routes: []*Route{
			newRoute("param", "/users/:id", 10, base),
			newRoute("literal", "/users/active", 10, base.Add(time.Hour)),
		}}, nil)

		m, err := r.Resolve(context.Background(), "crm", "/users/active", "GET")
		require.NoError(t, err)
		assert.Equal(t, "literal", m.Route.ID)
		assert.Empty(t, m.Params)
	})

	t.Run("higher priority wins over specificity", func(t *testing.T) {
		r := NewResolver(&staticProvider{routes: []*Route{
			newRoute("literal", "/users/active", 5, base),
			newRoute("param", "/users/:id", 20, base),
		}}, nil)

		m, err := r.Resolve(context.Background(), "crm", "/users/active", "GET")
		require.NoError(t, err)
		assert.Equal(t, "param", m.Route.ID)
	})

	t.Run("earlier creation breaks tie", func(t *testing.T) {
		r := NewResolver(&staticProvider{routes: []*Route{
			newRoute("newer", "/users/:id", 10, base.Add(time.Minute)),
			newRoute("older", "/users/:id", 10, base),
		}}, nil)

		m, err := r.Resolve(context.Background(), "crm", "/users/42", "GET")
		require.NoError(t, err)
		assert.Equal(t, "older", m.Route.ID)
	})

	t.Run("lexical id breaks full tie", func(t *testing.T) {
		r := NewResolver(&staticProvider{routes: []*Route{
			newRoute("route-b", "/users/:id", 10, base),
			newRoute("route-a", "/users/:id", 10, base),
		}}, nil)

		m, err := r.Resolve(context.Background(), "crm", "/users/42", "GET")
		require.NoError(t, err)
		assert.Equal(t, "route-a", m.Route.ID)
	})

	t.Run("inactive routes are skipped", func(t *testing.T) {
		inactive := newRoute("off", "/users/:id", 100, base)
		inactive.Active = false

		r := NewResolver(&staticProvider{routes: []*Route{
			inactive,
			newRoute("on", "/users/:id", 1, base),
		}}, nil)

		m, err := r.Resolve(context.Background(), "crm", "/users/42", "GET")
		require.NoError(t, err)
		assert.Equal(t, "on", m.Route.ID)
	})

	t.Run("method mismatch", func(t *testing.T) {
		post := newRoute("post-only", "/users/:id", 0, base)
		post.Method = "POST"

		r := NewResolver(&staticProvider{routes: []*Route{post}}, nil)
		_, err := r.Resolve(context.Background(), "crm", "/users/42", "GET")
		assert.ErrorIs(t, err, ErrRouteNotFound)
	})

	t.Run("module mismatch", func(t *testing.T) {
		other := newRoute("other", "/users/:id", 0, base)
		other.Module = "billing"

		r := NewResolver(&staticProvider{routes: []*Route{other}}, nil)
		_, err := r.Resolve(context.Background(), "crm", "/users/42", "GET")
		assert.ErrorIs(t, err, ErrRouteNotFound)
	})

	t.Run("invalid pattern disables only that route", func(t *testing.T) {
		broken := newRoute("broken", "users/:id", 100, base)

		r := NewResolver(&staticProvider{routes: []*Route{
			broken,
			newRoute("valid", "/users/:id", 1, base),
		}}, nil)

		m, err := r.Resolve(context.Background(), "crm", "/users/42", "GET")
		require.NoError(t, err)
		assert.Equal(t, "valid", m.Route.ID)
	})
}
