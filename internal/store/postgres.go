package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apiconduit/conduit/internal/connector"
	"github.com/apiconduit/conduit/internal/route"
	"github.com/apiconduit/conduit/internal/transform"
)

// Postgres is a Store backed by PostgreSQL via pgx. Transform programs
// and rate limit policies are persisted as JSONB; secret envelope parts
// live in separate bytea columns.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pool and verifies it with a short ping.
func NewPostgres(ctx context.Context, url string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) GetConnector(ctx context.Context, id string) (*connector.Connector, error) {
	var (
		c         connector.Connector
		timeoutMS int64
		resetMS   int64
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, kind, base_url, auth_kind, timeout_ms, active,
		       failure_threshold, reset_timeout_ms, success_threshold, breaker_disabled
		FROM connectors WHERE id = $1
	`, id).Scan(
		&c.ID, &c.TenantID, &c.Name, &c.Kind, &c.BaseURL, &c.AuthKind, &timeoutMS, &c.Active,
		&c.Resilience.FailureThreshold, &resetMS, &c.Resilience.SuccessThreshold,
		&c.Resilience.BreakerDisabled,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("connector %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query connector: %w", err)
	}
	c.Timeout = time.Duration(timeoutMS) * time.Millisecond
	c.Resilience.ResetTimeout = time.Duration(resetMS) * time.Millisecond
	return &c, nil
}

func (p *Postgres) PutConnector(ctx context.Context, c *connector.Connector) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO connectors (
			id, tenant_id, name, kind, base_url, auth_kind, timeout_ms, active,
			failure_threshold, reset_timeout_ms, success_threshold, breaker_disabled
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			base_url = EXCLUDED.base_url,
			auth_kind = EXCLUDED.auth_kind,
			timeout_ms = EXCLUDED.timeout_ms,
			active = EXCLUDED.active,
			failure_threshold = EXCLUDED.failure_threshold,
			reset_timeout_ms = EXCLUDED.reset_timeout_ms,
			success_threshold = EXCLUDED.success_threshold,
			breaker_disabled = EXCLUDED.breaker_disabled
	`,
		c.ID, c.TenantID, c.Name, c.Kind, c.BaseURL, c.AuthKind,
		c.Timeout.Milliseconds(), c.Active,
		c.Resilience.FailureThreshold, c.Resilience.ResetTimeout.Milliseconds(),
		c.Resilience.SuccessThreshold, c.Resilience.BreakerDisabled,
	)
	if err != nil {
		return fmt.Errorf("upsert connector: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteConnector(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM connectors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete connector: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("connector %q: %w", id, ErrNotFound)
	}
	return nil
}

func (p *Postgres) ListConnectors(ctx context.Context, tenantID string) ([]*connector.Connector, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, tenant_id, name, kind, base_url, auth_kind, timeout_ms, active,
		       failure_threshold, reset_timeout_ms, success_threshold, breaker_disabled
		FROM connectors
		WHERE $1 = '' OR tenant_id = $1
		ORDER BY id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query connectors: %w", err)
	}
	defer rows.Close()

	var out []*connector.Connector
	for rows.Next() {
		var (
			c         connector.Connector
			timeoutMS int64
			resetMS   int64
		)
		if err := rows.Scan(
			&c.ID, &c.TenantID, &c.Name, &c.Kind, &c.BaseURL, &c.AuthKind, &timeoutMS, &c.Active,
			&c.Resilience.FailureThreshold, &resetMS, &c.Resilience.SuccessThreshold,
			&c.Resilience.BreakerDisabled,
		); err != nil {
			return nil, fmt.Errorf("scan connector: %w", err)
		}
		c.Timeout = time.Duration(timeoutMS) * time.Millisecond
		c.Resilience.ResetTimeout = time.Duration(resetMS) * time.Millisecond
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (p *Postgres) ListRoutes(ctx context.Context, module, method string) ([]*route.Route, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, tenant_id, module, pattern, method, connector_id, upstream_path,
		       require_auth, allowed_roles, priority, active,
		       request_transform, response_transform, rate_limit, created_at
		FROM routes
		WHERE ($1 = '' OR module = $1) AND ($2 = '' OR method = upper($2))
		ORDER BY id
	`, module, method)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()

	var out []*route.Route
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) GetRoute(ctx context.Context, id string) (*route.Route, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, tenant_id, module, pattern, method, connector_id, upstream_path,
		       require_auth, allowed_roles, priority, active,
		       request_transform, response_transform, rate_limit, created_at
		FROM routes WHERE id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query route: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query route: %w", err)
		}
		return nil, fmt.Errorf("route %q: %w", id, ErrNotFound)
	}
	return scanRoute(rows)
}

func scanRoute(rows pgx.Rows) (*route.Route, error) {
	var (
		r            route.Route
		requestJSON  []byte
		responseJSON []byte
		limitJSON    []byte
	)
	if err := rows.Scan(
		&r.ID, &r.TenantID, &r.Module, &r.Pattern, &r.Method, &r.ConnectorID, &r.UpstreamPath,
		&r.RequireAuth, &r.AllowedRoles, &r.Priority, &r.Active,
		&requestJSON, &responseJSON, &limitJSON, &r.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan route: %w", err)
	}

	if len(requestJSON) > 0 {
		if err := json.Unmarshal(requestJSON, &r.RequestTransform); err != nil {
			return nil, fmt.Errorf("decode request transform for route %q: %w", r.ID, err)
		}
	}
	if len(responseJSON) > 0 {
		if err := json.Unmarshal(responseJSON, &r.ResponseTransform); err != nil {
			return nil, fmt.Errorf("decode response transform for route %q: %w", r.ID, err)
		}
	}
	if len(limitJSON) > 0 {
		if err := json.Unmarshal(limitJSON, &r.RateLimit); err != nil {
			return nil, fmt.Errorf("decode rate limit for route %q: %w", r.ID, err)
		}
	}
	return &r, nil
}

func (p *Postgres) PutRoute(ctx context.Context, r *route.Route) error {
	requestJSON, err := marshalOps(r.RequestTransform)
	if err != nil {
		return fmt.Errorf("encode request transform: %w", err)
	}
	responseJSON, err := marshalOps(r.ResponseTransform)
	if err != nil {
		return fmt.Errorf("encode response transform: %w", err)
	}
	var limitJSON []byte
	if r.RateLimit != nil {
		if limitJSON, err = json.Marshal(r.RateLimit); err != nil {
			return fmt.Errorf("encode rate limit: %w", err)
		}
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO routes (
			id, tenant_id, module, pattern, method, connector_id, upstream_path,
			require_auth, allowed_roles, priority, active,
			request_transform, response_transform, rate_limit, created_at
		) VALUES ($1,$2,$3,$4,upper($5),$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			module = EXCLUDED.module,
			pattern = EXCLUDED.pattern,
			method = EXCLUDED.method,
			connector_id = EXCLUDED.connector_id,
			upstream_path = EXCLUDED.upstream_path,
			require_auth = EXCLUDED.require_auth,
			allowed_roles = EXCLUDED.allowed_roles,
			priority = EXCLUDED.priority,
			active = EXCLUDED.active,
			request_transform = EXCLUDED.request_transform,
			response_transform = EXCLUDED.response_transform,
			rate_limit = EXCLUDED.rate_limit
	`,
		r.ID, r.TenantID, r.Module, r.Pattern, r.Method, r.ConnectorID, r.UpstreamPath,
		r.RequireAuth, r.AllowedRoles, r.Priority, r.Active,
		requestJSON, responseJSON, limitJSON, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert route: %w", err)
	}
	return nil
}

func marshalOps(ops []transform.Operation) ([]byte, error) {
	if len(ops) == 0 {
		return nil, nil
	}
	return json.Marshal(ops)
}

func (p *Postgres) DeleteRoute(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM routes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete route: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("route %q: %w", id, ErrNotFound)
	}
	return nil
}

func (p *Postgres) GetActiveSecret(ctx context.Context, connectorID string) (*SecretRecord, error) {
	var rec SecretRecord
	err := p.pool.QueryRow(ctx, `
		SELECT id, connector_id, version, ciphertext, iv, tag, active, created_at
		FROM connector_secrets
		WHERE connector_id = $1 AND active
		ORDER BY version DESC
		LIMIT 1
	`, connectorID).Scan(
		&rec.ID, &rec.ConnectorID, &rec.Version,
		&rec.Blob.Ciphertext, &rec.Blob.IV, &rec.Blob.Tag,
		&rec.Active, &rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("connector %q: %w", connectorID, ErrNoActiveSecret)
	}
	if err != nil {
		return nil, fmt.Errorf("query secret: %w", err)
	}
	return &rec, nil
}

func (p *Postgres) PutSecret(ctx context.Context, rec *SecretRecord) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if rec.Active {
		if _, err := tx.Exec(ctx,
			`UPDATE connector_secrets SET active = false WHERE connector_id = $1 AND active`,
			rec.ConnectorID,
		); err != nil {
			return fmt.Errorf("deactivate previous secrets: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO connector_secrets (id, connector_id, version, ciphertext, iv, tag, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		rec.ID, rec.ConnectorID, rec.Version,
		rec.Blob.Ciphertext, rec.Blob.IV, rec.Blob.Tag,
		rec.Active, rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert secret: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

var _ Store = (*Postgres)(nil)
