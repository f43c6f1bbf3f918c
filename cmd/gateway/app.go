package main

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/apiconduit/conduit/internal/audit"
	"github.com/apiconduit/conduit/internal/circuitbreaker"
	"github.com/apiconduit/conduit/internal/config"
	"github.com/apiconduit/conduit/internal/crypto"
	"github.com/apiconduit/conduit/internal/egress"
	"github.com/apiconduit/conduit/internal/identity"
	"github.com/apiconduit/conduit/internal/observability"
	"github.com/apiconduit/conduit/internal/pipeline"
	"github.com/apiconduit/conduit/internal/ratelimit"
	"github.com/apiconduit/conduit/internal/route"
	"github.com/apiconduit/conduit/internal/secrets"
	"github.com/apiconduit/conduit/internal/server"
	"github.com/apiconduit/conduit/internal/store"
	"github.com/apiconduit/conduit/internal/transform"
)

// application holds every long-lived gateway component.
type application struct {
	cfg      *config.Config
	logger   observability.Logger
	tracer   *observability.Tracer
	provider secrets.Provider
	postgres *store.Postgres
	guard    *egress.Guard
	breakers *circuitbreaker.Registry
	limiter  ratelimit.Limiter
	auditLog audit.Logger
	server   *server.Server
	watcher  *config.Watcher
}

// buildApplication wires the gateway from configuration. Secret
// material (master key, token signing secret) is pulled from the
// secrets provider once at startup.
func buildApplication(ctx context.Context, configPath string, cfg *config.Config, logger observability.Logger) (*application, error) {
	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		Enabled:        cfg.Tracing.Enabled,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		StdoutExporter: cfg.Tracing.StdoutExporter,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize tracer: %w", err)
	}

	provider, err := secrets.NewProvider(ctx, secrets.Config{
		Type: secrets.ProviderType(cfg.Secrets.Provider),
		Env: secrets.EnvConfig{
			Prefix: cfg.Secrets.EnvPrefix,
			Logger: logger,
		},
		Vault: secrets.VaultConfig{
			Address:    cfg.Secrets.Vault.Address,
			Token:      cfg.Secrets.Vault.Token,
			Namespace:  cfg.Secrets.Vault.Namespace,
			MountPoint: cfg.Secrets.Vault.MountPoint,
			Timeout:    cfg.Secrets.Vault.Timeout.Duration(),
			Logger:     logger,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("initialize secrets provider: %w", err)
	}

	masterKey, err := loadKey(ctx, provider, cfg.Secrets.MasterKeyRef)
	if err != nil {
		return nil, fmt.Errorf("load master key: %w", err)
	}
	envelope, err := crypto.NewEnvelope(masterKey)
	if err != nil {
		return nil, fmt.Errorf("initialize crypto envelope: %w", err)
	}

	verifier, err := buildVerifier(ctx, provider, cfg, logger)
	if err != nil {
		return nil, err
	}

	guard, err := egress.NewGuard(egressConfig(cfg.Egress), logger)
	if err != nil {
		return nil, fmt.Errorf("initialize egress guard: %w", err)
	}

	breakers := circuitbreaker.NewRegistry(breakerConfig(cfg.Breaker), logger)

	st, postgres, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	limiter, err := buildLimiter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize rate limiter: %w", err)
	}

	auditLog := audit.NewLogger(audit.WithLogger(logger))

	p, err := pipeline.New(pipeline.Options{
		Resolver:        route.NewResolver(st, logger),
		Connectors:      st,
		Secrets:         st,
		Envelope:        envelope,
		Guard:           guard,
		Breakers:        breakers,
		Engine:          transform.NewEngine(logger),
		Client:          pipeline.NewHTTPClient(guard, cfg.Upstream.MaxIdleConns),
		Audit:           auditLog,
		Logger:          logger,
		Tracer:          tracer,
		Limiter:         limiter,
		DefaultTimeout:  cfg.Upstream.DefaultTimeout.Duration(),
		MaxResponseBody: cfg.Upstream.MaxResponseBody,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize pipeline: %w", err)
	}

	srvOpts := server.Options{
		Config: &server.Config{
			Address:         cfg.Server.Address,
			ReadTimeout:     cfg.Server.ReadTimeout.Duration(),
			WriteTimeout:    cfg.Server.WriteTimeout.Duration(),
			IdleTimeout:     cfg.Server.IdleTimeout.Duration(),
			ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
			MaxBodyBytes:    cfg.Server.MaxBodyBytes,
			AdminToken:      cfg.Server.AdminToken,
		},
		Pipeline: p,
		Verifier: verifier,
		Breakers: breakers,
		Logger:   logger,
	}
	if cfg.RateLimit.Enabled {
		srvOpts.Limiter = limiter
		srvOpts.Limit = ratelimit.Limit{
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window.Duration(),
			Burst:    cfg.RateLimit.Burst,
		}
	}
	srv, err := server.New(srvOpts)
	if err != nil {
		return nil, fmt.Errorf("initialize server: %w", err)
	}

	app := &application{
		cfg:      cfg,
		logger:   logger,
		tracer:   tracer,
		provider: provider,
		postgres: postgres,
		guard:    guard,
		breakers: breakers,
		limiter:  limiter,
		auditLog: auditLog,
		server:   srv,
	}

	watcher, err := config.NewWatcher(configPath, app.applyReload, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize config watcher: %w", err)
	}
	app.watcher = watcher

	return app, nil
}

// run starts the listener and blocks until the context is cancelled or
// the listener fails, then shuts everything down in reverse order.
func (a *application) run(ctx context.Context) error {
	if err := a.watcher.Start(ctx); err != nil {
		a.logger.Warn("config hot reload unavailable", observability.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		runErr = err
	}

	shutdownCtx := context.Background()
	if err := a.server.Stop(shutdownCtx); err != nil {
		a.logger.Error("server shutdown failed", observability.Error(err))
	}
	if err := a.watcher.Stop(); err != nil {
		a.logger.Error("config watcher stop failed", observability.Error(err))
	}
	if err := a.auditLog.Close(); err != nil {
		a.logger.Error("audit logger close failed", observability.Error(err))
	}
	if a.limiter != nil {
		_ = a.limiter.Close()
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if err := a.provider.Close(); err != nil {
		a.logger.Error("secrets provider close failed", observability.Error(err))
	}
	if err := a.tracer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown failed", observability.Error(err))
	}

	return runErr
}

// applyReload pushes hot-reloadable settings from a config file change:
// the egress denylist and the breaker defaults.
func (a *application) applyReload(cfg *config.Config) {
	if err := a.guard.UpdateConfig(egressConfig(cfg.Egress)); err != nil {
		a.logger.Error("egress config reload rejected", observability.Error(err))
	}
	a.breakers.UpdateDefaults(breakerConfig(cfg.Breaker))
	a.logger.Info("applied configuration reload")
}

func buildStore(ctx context.Context, cfg *config.Config, logger observability.Logger) (store.Store, *store.Postgres, error) {
	switch cfg.Store.Backend {
	case "postgres":
		pg, err := store.NewPostgres(ctx, cfg.Store.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info("using postgres configuration store")
		return pg, pg, nil
	default:
		logger.Info("using in-memory configuration store")
		return store.NewMemory(), nil, nil
	}
}

func buildLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, error) {
	if cfg.RateLimit.Enabled && cfg.RateLimit.Backend == "redis" {
		return ratelimit.NewRedis(ctx, ratelimit.RedisConfig{
			Address:  cfg.RateLimit.Redis.Address,
			Password: cfg.RateLimit.Redis.Password,
			DB:       cfg.RateLimit.Redis.DB,
			Prefix:   cfg.RateLimit.Redis.Prefix,
			PoolSize: cfg.RateLimit.Redis.PoolSize,
			Timeout:  cfg.RateLimit.Redis.Timeout.Duration(),
		})
	}
	// The local limiter also backs per-route policies, so it is built
	// even when the entry-point limit is disabled.
	return ratelimit.NewLocal(), nil
}

// buildVerifier loads the JWT shared secret. A missing secret is not
// fatal: every caller is then anonymous and routes requiring auth
// reject them.
func buildVerifier(ctx context.Context, provider secrets.Provider, cfg *config.Config, logger observability.Logger) (*identity.Verifier, error) {
	if cfg.Secrets.TokenSecretRef == "" {
		return nil, nil
	}

	secret, err := provider.GetSecret(ctx, cfg.Secrets.TokenSecretRef)
	if err != nil {
		logger.Warn("token secret unavailable, callers are anonymous",
			observability.String("ref", cfg.Secrets.TokenSecretRef),
			observability.Error(err),
		)
		return nil, nil
	}
	raw, ok := secret.GetBytes("value")
	if !ok || len(raw) == 0 {
		logger.Warn("token secret is empty, callers are anonymous")
		return nil, nil
	}

	verifier, err := identity.NewVerifier(raw, cfg.Auth.Issuer)
	if err != nil {
		return nil, fmt.Errorf("initialize token verifier: %w", err)
	}
	return verifier, nil
}

// loadKey fetches and decodes the master encryption key. Hex and
// base64 encodings are accepted; the decoded key must be 256 bits.
func loadKey(ctx context.Context, provider secrets.Provider, ref string) ([]byte, error) {
	secret, err := provider.GetSecret(ctx, ref)
	if err != nil {
		return nil, err
	}
	raw, ok := secret.GetBytes("value")
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("secret %q has no value", ref)
	}
	return decodeKey(raw)
}

func decodeKey(raw []byte) ([]byte, error) {
	if decoded, err := hex.DecodeString(string(raw)); err == nil && len(decoded) == crypto.KeySize {
		return decoded, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(string(raw)); err == nil && len(decoded) == crypto.KeySize {
		return decoded, nil
	}
	if len(raw) == crypto.KeySize {
		return raw, nil
	}
	return nil, fmt.Errorf("master key must decode to %d bytes", crypto.KeySize)
}

func egressConfig(cfg config.EgressConfig) *egress.Config {
	return &egress.Config{
		BlockedNetworks:      cfg.BlockedNetworks,
		ExtraBlockedNetworks: cfg.ExtraBlockedNetworks,
		BlockedHostnames:     cfg.BlockedHostnames,
		RebindingDomains:     cfg.RebindingDomains,
	}
}

func breakerConfig(cfg config.BreakerConfig) *circuitbreaker.Config {
	return &circuitbreaker.Config{
		FailureThreshold: cfg.FailureThreshold,
		ResetTimeout:     cfg.ResetTimeout.Duration(),
		SuccessThreshold: cfg.SuccessThreshold,
		Window:           cfg.Window.Duration(),
	}
}
