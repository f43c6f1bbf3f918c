package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/apiconduit/conduit/internal/connector"
	"github.com/apiconduit/conduit/internal/route"
)

// Memory is an in-process Store guarded by a single RWMutex. Reads
// return copies so callers can never mutate stored state.
type Memory struct {
	mu         sync.RWMutex
	connectors map[string]*connector.Connector
	routes     map[string]*route.Route
	secrets    map[string][]*SecretRecord // keyed by connector id
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		connectors: make(map[string]*connector.Connector),
		routes:     make(map[string]*route.Route),
		secrets:    make(map[string][]*SecretRecord),
	}
}

func (m *Memory) GetConnector(_ context.Context, id string) (*connector.Connector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.connectors[id]
	if !ok {
		return nil, fmt.Errorf("connector %q: %w", id, ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) PutConnector(_ context.Context, c *connector.Connector) error {
	if c.ID == "" {
		return fmt.Errorf("connector id must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *c
	m.connectors[c.ID] = &cp
	return nil
}

func (m *Memory) DeleteConnector(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.connectors[id]; !ok {
		return fmt.Errorf("connector %q: %w", id, ErrNotFound)
	}
	delete(m.connectors, id)
	return nil
}

func (m *Memory) ListConnectors(_ context.Context, tenantID string) ([]*connector.Connector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*connector.Connector
	for _, c := range m.connectors {
		if tenantID != "" && c.TenantID != tenantID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListRoutes(_ context.Context, module, method string) ([]*route.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	method = strings.ToUpper(method)
	var out []*route.Route
	for _, r := range m.routes {
		if module != "" && r.Module != module {
			continue
		}
		if method != "" && !strings.EqualFold(r.Method, method) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetRoute(_ context.Context, id string) (*route.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.routes[id]
	if !ok {
		return nil, fmt.Errorf("route %q: %w", id, ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) PutRoute(_ context.Context, r *route.Route) error {
	if r.ID == "" {
		return fmt.Errorf("route id must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *r
	m.routes[r.ID] = &cp
	return nil
}

func (m *Memory) DeleteRoute(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.routes[id]; !ok {
		return fmt.Errorf("route %q: %w", id, ErrNotFound)
	}
	delete(m.routes, id)
	return nil
}

func (m *Memory) GetActiveSecret(_ context.Context, connectorID string) (*SecretRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.secrets[connectorID] {
		if rec.Active {
			cp := *rec
			cp.Blob.Ciphertext = append([]byte(nil), rec.Blob.Ciphertext...)
			cp.Blob.IV = append([]byte(nil), rec.Blob.IV...)
			cp.Blob.Tag = append([]byte(nil), rec.Blob.Tag...)
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("connector %q: %w", connectorID, ErrNoActiveSecret)
}

func (m *Memory) PutSecret(_ context.Context, rec *SecretRecord) error {
	if rec.ConnectorID == "" {
		return fmt.Errorf("secret connector id must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	cp.Blob.Ciphertext = append([]byte(nil), rec.Blob.Ciphertext...)
	cp.Blob.IV = append([]byte(nil), rec.Blob.IV...)
	cp.Blob.Tag = append([]byte(nil), rec.Blob.Tag...)

	if cp.Active {
		for _, existing := range m.secrets[rec.ConnectorID] {
			existing.Active = false
		}
	}
	m.secrets[rec.ConnectorID] = append(m.secrets[rec.ConnectorID], &cp)
	return nil
}

var _ Store = (*Memory)(nil)
