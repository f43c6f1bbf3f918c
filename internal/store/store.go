package store

import (
	"context"
	"errors"
	"time"

	"github.com/apiconduit/conduit/internal/connector"
	"github.com/apiconduit/conduit/internal/crypto"
	"github.com/apiconduit/conduit/internal/route"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrNoActiveSecret indicates a connector has no active secret version.
var ErrNoActiveSecret = errors.New("no active secret for connector")

// SecretRecord is one encrypted secret version bound to a connector.
// The plaintext never reaches the store; only the envelope parts are
// persisted, and they are persisted as separate columns so a leak of
// any single column is useless on its own.
type SecretRecord struct {
	ID          string               `json:"id"`
	ConnectorID string               `json:"connector_id"`
	Version     int                  `json:"version"`
	Blob        crypto.EncryptedBlob `json:"-"`
	Active      bool                 `json:"active"`
	CreatedAt   time.Time            `json:"created_at"`
}

// ConnectorStore reads and writes connector definitions.
type ConnectorStore interface {
	GetConnector(ctx context.Context, id string) (*connector.Connector, error)
	PutConnector(ctx context.Context, c *connector.Connector) error
	DeleteConnector(ctx context.Context, id string) error
	ListConnectors(ctx context.Context, tenantID string) ([]*connector.Connector, error)
}

// RouteStore reads and writes route rules. ListRoutes satisfies
// route.Provider.
type RouteStore interface {
	ListRoutes(ctx context.Context, module, method string) ([]*route.Route, error)
	GetRoute(ctx context.Context, id string) (*route.Route, error)
	PutRoute(ctx context.Context, r *route.Route) error
	DeleteRoute(ctx context.Context, id string) error
}

// SecretStore reads and writes encrypted connector secrets. At most one
// version per connector is active at a time.
type SecretStore interface {
	// GetActiveSecret returns the single active secret version for a
	// connector, or ErrNoActiveSecret.
	GetActiveSecret(ctx context.Context, connectorID string) (*SecretRecord, error)

	// PutSecret stores a new secret version. When rec.Active is true
	// any previously active version for the connector is deactivated in
	// the same operation.
	PutSecret(ctx context.Context, rec *SecretRecord) error
}

// Store aggregates the three stores a gateway instance needs.
type Store interface {
	ConnectorStore
	RouteStore
	SecretStore
}
