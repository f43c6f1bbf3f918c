package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/apiconduit/conduit/internal/audit"
	"github.com/apiconduit/conduit/internal/circuitbreaker"
	"github.com/apiconduit/conduit/internal/connector"
	"github.com/apiconduit/conduit/internal/crypto"
	"github.com/apiconduit/conduit/internal/egress"
	"github.com/apiconduit/conduit/internal/identity"
	"github.com/apiconduit/conduit/internal/observability"
	"github.com/apiconduit/conduit/internal/ratelimit"
	"github.com/apiconduit/conduit/internal/route"
	"github.com/apiconduit/conduit/internal/store"
	"github.com/apiconduit/conduit/internal/transform"
)

// errUpstreamStatus marks a relayable 5xx upstream response inside the
// breaker callback so it is counted as a failure.
var errUpstreamStatus = errors.New("upstream returned server error")

// Request is one inbound call to the proxy entry point.
type Request struct {
	Module    string
	Path      string
	Method    string
	RawQuery  string
	Header    http.Header
	Body      []byte
	Principal *identity.Principal
	ClientIP  string
}

// Response is the relayed result.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Options wires the pipeline's collaborators.
type Options struct {
	Resolver   *route.Resolver
	Connectors store.ConnectorStore
	Secrets    store.SecretStore
	Envelope   *crypto.Envelope
	Guard      *egress.Guard
	Breakers   *circuitbreaker.Registry
	Engine     *transform.Engine
	Client     Doer
	Audit      audit.Logger
	Logger     observability.Logger
	Tracer     *observability.Tracer

	// Limiter enforces per-route rate limit policies. Nil disables
	// route-level limiting.
	Limiter ratelimit.Limiter

	// DefaultTimeout bounds upstream calls for connectors without an
	// explicit timeout.
	DefaultTimeout time.Duration

	// MaxResponseBody caps how much of an upstream body is buffered.
	MaxResponseBody int64
}

// Pipeline relays requests to upstream connectors.
type Pipeline struct {
	resolver   *route.Resolver
	connectors store.ConnectorStore
	secrets    store.SecretStore
	envelope   *crypto.Envelope
	guard      *egress.Guard
	breakers   *circuitbreaker.Registry
	engine     *transform.Engine
	client     Doer
	audit      audit.Logger
	logger     observability.Logger
	tracer     *observability.Tracer
	limiter    ratelimit.Limiter

	defaultTimeout  time.Duration
	maxResponseBody int64
}

// New creates a pipeline. Resolver, Connectors, Secrets, Envelope,
// Guard, Breakers and Client are required.
func New(opts Options) (*Pipeline, error) {
	switch {
	case opts.Resolver == nil:
		return nil, errors.New("pipeline: resolver is required")
	case opts.Connectors == nil:
		return nil, errors.New("pipeline: connector store is required")
	case opts.Secrets == nil:
		return nil, errors.New("pipeline: secret store is required")
	case opts.Envelope == nil:
		return nil, errors.New("pipeline: crypto envelope is required")
	case opts.Guard == nil:
		return nil, errors.New("pipeline: egress guard is required")
	case opts.Breakers == nil:
		return nil, errors.New("pipeline: breaker registry is required")
	case opts.Client == nil:
		return nil, errors.New("pipeline: upstream client is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	auditLogger := opts.Audit
	if auditLogger == nil {
		auditLogger = audit.Nop()
	}
	engine := opts.Engine
	if engine == nil {
		engine = transform.NewEngine(logger)
	}
	defaultTimeout := opts.DefaultTimeout
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	maxResponseBody := opts.MaxResponseBody
	if maxResponseBody <= 0 {
		maxResponseBody = 16 << 20
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.NoopLimiter{}
	}

	return &Pipeline{
		resolver:        opts.Resolver,
		connectors:      opts.Connectors,
		secrets:         opts.Secrets,
		envelope:        opts.Envelope,
		guard:           opts.Guard,
		breakers:        opts.Breakers,
		engine:          engine,
		client:          opts.Client,
		audit:           auditLogger,
		logger:          logger,
		tracer:          opts.Tracer,
		limiter:         limiter,
		defaultTimeout:  defaultTimeout,
		maxResponseBody: maxResponseBody,
	}, nil
}

// Execute relays one request. A non-nil error maps to a client status
// via StatusFor; a returned Response is relayed as-is, including
// upstream 4xx/5xx statuses.
func (p *Pipeline) Execute(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	if p.tracer != nil {
		var span trace.Span
		ctx, span = p.tracer.Start(ctx, "proxy "+req.Method,
			trace.WithAttributes(
				attribute.String("gateway.module", req.Module),
				attribute.String("http.method", req.Method),
			),
		)
		defer span.End()
	}

	resp, connectorID, err := p.execute(ctx, req)

	duration := time.Since(start)
	status := StatusFor(err)
	if err == nil && resp != nil {
		status = resp.Status
	}
	recordRequest(req.Module, status, duration)
	p.emitAudit(ctx, req, connectorID, status, duration, err)

	return resp, err
}

func (p *Pipeline) execute(ctx context.Context, req *Request) (*Response, string, error) {
	log := p.logger.WithContext(ctx)

	match, err := p.resolver.Resolve(ctx, req.Module, req.Path, req.Method)
	if err != nil {
		return nil, "", err
	}
	rt := match.Route

	if rt.RateLimit != nil && rt.RateLimit.RequestsPerSecond > 0 {
		result, lerr := p.limiter.Allow(ctx, "route:"+rt.ID, ratelimit.Limit{
			Requests: rt.RateLimit.RequestsPerSecond,
			Window:   time.Second,
			Burst:    rt.RateLimit.Burst,
		})
		if lerr != nil {
			// Limiter backend failure fails open.
			log.Warn("route rate limiter unavailable",
				observability.String("route", rt.ID),
				observability.Error(lerr),
			)
		} else if !result.Allowed {
			return nil, rt.ConnectorID, ErrRateLimited
		}
	}

	if rt.RequireAuth {
		if !req.Principal.HasAnyRole(rt.AllowedRoles) {
			return nil, rt.ConnectorID, ErrForbidden
		}
		if rt.TenantID != "" && req.Principal.TenantID != rt.TenantID {
			return nil, rt.ConnectorID, ErrForbidden
		}
	}

	conn, err := p.connectors.GetConnector(ctx, rt.ConnectorID)
	if err != nil {
		return nil, rt.ConnectorID, fmt.Errorf("load connector: %w", err)
	}
	if !conn.Active {
		return nil, conn.ID, ErrConnectorInactive
	}

	var cred *credential
	if conn.AuthKind.RequiresSecret() {
		cred, err = p.loadCredential(ctx, conn)
		if err != nil {
			return nil, conn.ID, err
		}
	}

	upstreamURL, err := buildUpstreamURL(conn.BaseURL, rt.UpstreamPath, match.Params, req.RawQuery)
	if err != nil {
		return nil, conn.ID, err
	}
	if err := p.guard.Validate(upstreamURL); err != nil {
		log.Warn("egress validation rejected upstream url",
			observability.String("connector", conn.ID),
			observability.Error(err),
		)
		return nil, conn.ID, err
	}

	body := req.Body
	if len(rt.RequestTransform) > 0 {
		body, err = p.transformBody(body, rt.RequestTransform, true)
		if err != nil {
			return nil, conn.ID, err
		}
	}

	resp, err := p.callUpstream(ctx, req, conn, cred, upstreamURL, body)
	if err != nil {
		return resp, conn.ID, err
	}

	// A configured response transform is a contract on successful
	// responses: a non-JSON 2xx body is a gateway fault, never relayed
	// untransformed. Upstream error bodies pass through untouched.
	if len(rt.ResponseTransform) > 0 && resp.Status >= http.StatusOK && resp.Status < http.StatusMultipleChoices {
		if !isJSONContent(resp.Header.Get("Content-Type")) {
			return nil, conn.ID, fmt.Errorf("response transform configured but upstream content-type is %q", resp.Header.Get("Content-Type"))
		}
		transformed, terr := p.transformBody(resp.Body, rt.ResponseTransform, false)
		if terr != nil {
			return nil, conn.ID, terr
		}
		resp.Body = transformed
		resp.Header.Set("Content-Type", "application/json")
	}

	return resp, conn.ID, nil
}

// loadCredential fetches and decrypts the connector's active secret.
// Plaintext exists only in this request's memory.
func (p *Pipeline) loadCredential(ctx context.Context, conn *connector.Connector) (*credential, error) {
	rec, err := p.secrets.GetActiveSecret(ctx, conn.ID)
	if err != nil {
		return nil, fmt.Errorf("load secret: %w", err)
	}

	plaintext, err := p.envelope.Decrypt(&rec.Blob)
	if err != nil {
		// Tampering or key mismatch. Surfaced with critical severity in
		// the audit trail; the plaintext never existed.
		p.logger.Error("secret decryption failed",
			observability.String("connector", conn.ID),
			observability.Int("secret_version", rec.Version),
		)
		return nil, err
	}

	cred := parseCredential(conn.AuthKind, plaintext)
	for i := range plaintext {
		plaintext[i] = 0
	}
	return cred, nil
}

// callUpstream issues the HTTP call under the connector's breaker and
// timeout, injecting the connector credential after the caller's own
// auth headers are stripped. A 5xx response is returned to the caller
// and still counted as a breaker failure.
func (p *Pipeline) callUpstream(ctx context.Context, req *Request, conn *connector.Connector, cred *credential, upstreamURL string, body []byte) (*Response, error) {
	breaker := p.breakers.GetOrCreateWithConfig(conn.ID, conn.BreakerConfig(p.breakers.Defaults()))

	var resp *Response
	err := breaker.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, conn.RequestTimeout(p.defaultTimeout))
		defer cancel()

		httpReq, err := http.NewRequestWithContext(callCtx, req.Method, upstreamURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build upstream request: %w", err)
		}
		httpReq.Header = sanitizeRequestHeaders(req.Header)
		cred.apply(httpReq)
		if len(body) > 0 && httpReq.Header.Get("Content-Type") == "" {
			httpReq.Header.Set("Content-Type", "application/json")
		}

		httpResp, err := p.client.Do(httpReq)
		if err != nil {
			if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
				return ErrUpstreamTimeout
			}
			if ctx.Err() == context.Canceled {
				// Client disconnect. Breaker records it as abandoned.
				return context.Canceled
			}
			var blocked *egress.BlockedError
			if errors.As(err, &blocked) {
				return blocked
			}
			return fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
		}
		defer httpResp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, p.maxResponseBody))
		if err != nil {
			return fmt.Errorf("%w: read body: %v", ErrUpstreamUnreachable, err)
		}

		resp = &Response{
			Status: httpResp.StatusCode,
			Header: sanitizeResponseHeaders(httpResp.Header),
			Body:   respBody,
		}
		if httpResp.StatusCode >= http.StatusInternalServerError {
			return errUpstreamStatus
		}
		return nil
	})

	if err != nil {
		// A 5xx that produced a response is relayed; the breaker has
		// already counted the failure.
		if errors.Is(err, errUpstreamStatus) && resp != nil {
			return resp, nil
		}
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: client disconnected", context.Canceled)
		}
		return nil, err
	}
	return resp, nil
}

// transformBody parses the JSON body, applies ops and re-encodes. For
// requests a parse failure is the caller's fault; for responses it is
// a gateway configuration fault.
func (p *Pipeline) transformBody(body []byte, ops []transform.Operation, inbound bool) ([]byte, error) {
	var doc any
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &doc); err != nil {
			if inbound {
				return nil, fmt.Errorf("%w: %v", ErrBadRequestBody, err)
			}
			return nil, fmt.Errorf("upstream body is not valid JSON: %v", err)
		}
	}

	result, err := p.engine.Apply(doc, ops)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode transformed body: %w", err)
	}
	return encoded, nil
}

// emitAudit records the per-request audit event. Decryption failures
// and egress rejections are security events with elevated severity.
func (p *Pipeline) emitAudit(ctx context.Context, req *Request, connectorID string, status int, duration time.Duration, err error) {
	var event *audit.Event
	switch {
	case err == nil:
		event = audit.NewEvent(audit.EventTypeRequest, audit.ActionProxyRequest, audit.OutcomeSuccess)
	case errors.Is(err, crypto.ErrDecryptionFailed):
		event = audit.NewEvent(audit.EventTypeSecurity, audit.ActionDecryptionFailed, audit.OutcomeError)
		event.WithLevel(audit.LevelCritical)
	case errors.Is(err, egress.ErrEgressBlocked):
		event = audit.NewEvent(audit.EventTypeSecurity, audit.ActionEgressBlocked, audit.OutcomeDenied)
	case errors.Is(err, ErrForbidden):
		event = audit.NewEvent(audit.EventTypeAuthorization, audit.ActionDeny, audit.OutcomeDenied)
	case errors.Is(err, ErrRateLimited):
		event = audit.NewEvent(audit.EventTypeRequest, audit.ActionRateLimitExceeded, audit.OutcomeDenied)
	default:
		event = audit.NewEvent(audit.EventTypeRequest, audit.ActionProxyRequest, audit.OutcomeFailure)
	}

	event.Message = strings.TrimSpace(req.Method + " /" + req.Module + req.Path)
	event.Metadata = map[string]any{
		"method":      req.Method,
		"path":        req.Path,
		"module":      req.Module,
		"status":      strconv.Itoa(status),
		"duration_ms": duration.Milliseconds(),
	}
	if connectorID != "" {
		event.Resource = &audit.Resource{Type: "connector", ID: connectorID}
	}
	if req.Principal != nil && !req.Principal.Anonymous() {
		event.Subject = &audit.Subject{
			ID:       req.Principal.UserID,
			TenantID: req.Principal.TenantID,
			Roles:    req.Principal.Roles,
			ClientIP: req.ClientIP,
		}
	} else if req.ClientIP != "" {
		event.Subject = &audit.Subject{ClientIP: req.ClientIP}
	}

	p.audit.Emit(ctx, event)
}

func isJSONContent(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	return contentType == "application/json" || strings.HasSuffix(contentType, "+json")
}
