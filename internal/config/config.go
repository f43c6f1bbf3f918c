// Package config loads and validates the gateway configuration from
// YAML, with environment variable expansion for secret references and
// an fsnotify-based watcher for hot reload of the egress denylist and
// breaker defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the root gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Store     StoreConfig     `yaml:"store"`
	Secrets   SecretsConfig   `yaml:"secrets"`
	Auth      AuthConfig      `yaml:"auth"`
	Egress    EgressConfig    `yaml:"egress"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
}

// ServerConfig configures the public HTTP listener.
type ServerConfig struct {
	Address         string   `yaml:"address"`
	ReadTimeout     Duration `yaml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout"`
	IdleTimeout     Duration `yaml:"idleTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`

	// MaxBodyBytes caps inbound request bodies.
	MaxBodyBytes int64 `yaml:"maxBodyBytes"`

	// AdminToken guards the admin endpoints. Empty disables them.
	AdminToken string `yaml:"adminToken"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracingConfig configures the OpenTelemetry tracer.
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled"`
	OTLPEndpoint   string  `yaml:"otlpEndpoint"`
	StdoutExporter bool    `yaml:"stdoutExporter"`
	SamplingRate   float64 `yaml:"samplingRate"`
	ServiceName    string  `yaml:"serviceName"`
}

// StoreConfig selects the configuration store backend.
type StoreConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `yaml:"backend"`

	// PostgresURL is the pgx connection string for the postgres
	// backend. Supports ${ENV} expansion.
	PostgresURL string `yaml:"postgresUrl"`
}

// SecretsConfig selects the bootstrap secrets provider.
type SecretsConfig struct {
	// Provider is "env" or "vault".
	Provider string `yaml:"provider"`

	// EnvPrefix overrides the env provider's variable prefix.
	EnvPrefix string `yaml:"envPrefix"`

	Vault VaultConfig `yaml:"vault"`

	// MasterKeyRef is the provider path of the 256-bit master
	// encryption key (hex or base64 encoded).
	MasterKeyRef string `yaml:"masterKeyRef"`

	// TokenSecretRef is the provider path of the JWT signing secret.
	TokenSecretRef string `yaml:"tokenSecretRef"`
}

// VaultConfig configures the Vault secrets backend.
type VaultConfig struct {
	Address    string   `yaml:"address"`
	Token      string   `yaml:"token"`
	Namespace  string   `yaml:"namespace"`
	MountPoint string   `yaml:"mountPoint"`
	Timeout    Duration `yaml:"timeout"`
}

// AuthConfig configures inbound principal extraction.
type AuthConfig struct {
	// Issuer is validated against token iss claims when set.
	Issuer string `yaml:"issuer"`
}

// EgressConfig mirrors the SSRF guard configuration. Hot reloadable.
type EgressConfig struct {
	BlockedNetworks      []string `yaml:"blockedNetworks"`
	ExtraBlockedNetworks []string `yaml:"extraBlockedNetworks"`
	BlockedHostnames     []string `yaml:"blockedHostnames"`
	RebindingDomains     []string `yaml:"rebindingDomains"`
}

// BreakerConfig holds gateway-wide circuit breaker defaults; connectors
// override individual values. Hot reloadable.
type BreakerConfig struct {
	FailureThreshold int      `yaml:"failureThreshold"`
	ResetTimeout     Duration `yaml:"resetTimeout"`
	SuccessThreshold int      `yaml:"successThreshold"`
	Window           Duration `yaml:"window"`
}

// RateLimitConfig configures the public entry point limiter.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	// Backend is "local" or "redis".
	Backend string `yaml:"backend"`

	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
	Burst    int      `yaml:"burst"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the shared rate limit backend.
type RedisConfig struct {
	Address  string   `yaml:"address"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	Prefix   string   `yaml:"prefix"`
	PoolSize int      `yaml:"poolSize"`
	Timeout  Duration `yaml:"timeout"`
}

// UpstreamConfig bounds upstream calls.
type UpstreamConfig struct {
	DefaultTimeout  Duration `yaml:"defaultTimeout"`
	MaxResponseBody int64    `yaml:"maxResponseBody"`
	MaxIdleConns    int      `yaml:"maxIdleConns"`
}

// Default returns the configuration used when a field is unset.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			IdleTimeout:     Duration(60 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
			MaxBodyBytes:    8 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Tracing: TracingConfig{
			ServiceName:  "conduit",
			SamplingRate: 0.1,
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Secrets: SecretsConfig{
			Provider:       "env",
			MasterKeyRef:   "master-key",
			TokenSecretRef: "token-secret",
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     Duration(30 * time.Second),
			SuccessThreshold: 2,
			Window:           Duration(time.Minute),
		},
		RateLimit: RateLimitConfig{
			Backend:  "local",
			Requests: 100,
			Window:   Duration(time.Minute),
		},
		Upstream: UpstreamConfig{
			DefaultTimeout:  Duration(30 * time.Second),
			MaxResponseBody: 16 << 20,
			MaxIdleConns:    100,
		},
	}
}

// Validate rejects configurations the gateway cannot run with.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.maxBodyBytes must be positive")
	}

	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("store.postgresUrl is required for the postgres backend")
		}
	default:
		return fmt.Errorf("store.backend must be memory or postgres, got %q", c.Store.Backend)
	}

	switch c.Secrets.Provider {
	case "env":
	case "vault":
		if c.Secrets.Vault.Address == "" {
			return fmt.Errorf("secrets.vault.address is required for the vault provider")
		}
	default:
		return fmt.Errorf("secrets.provider must be env or vault, got %q", c.Secrets.Provider)
	}
	if c.Secrets.MasterKeyRef == "" {
		return fmt.Errorf("secrets.masterKeyRef must not be empty")
	}

	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("breaker.failureThreshold must be positive")
	}
	if c.Breaker.ResetTimeout.Duration() <= 0 {
		return fmt.Errorf("breaker.resetTimeout must be positive")
	}
	if c.Breaker.SuccessThreshold <= 0 {
		return fmt.Errorf("breaker.successThreshold must be positive")
	}

	if c.RateLimit.Enabled {
		switch c.RateLimit.Backend {
		case "local":
		case "redis":
			if c.RateLimit.Redis.Address == "" {
				return fmt.Errorf("rateLimit.redis.address is required for the redis backend")
			}
		default:
			return fmt.Errorf("rateLimit.backend must be local or redis, got %q", c.RateLimit.Backend)
		}
		if c.RateLimit.Requests <= 0 || c.RateLimit.Window.Duration() <= 0 {
			return fmt.Errorf("rateLimit.requests and rateLimit.window must be positive")
		}
	}

	if c.Upstream.DefaultTimeout.Duration() <= 0 {
		return fmt.Errorf("upstream.defaultTimeout must be positive")
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("tracing.samplingRate must be in [0, 1]")
	}

	return nil
}
