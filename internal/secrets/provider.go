// Package secrets loads bootstrap material the gateway cannot store in
// its own database, such as the master encryption key and the token
// signing secret. Backends: environment variables and HashiCorp Vault
// KV v2.
package secrets

import (
	"context"
	"errors"
	"fmt"
)

// ProviderType identifies a secrets backend.
type ProviderType string

const (
	// ProviderTypeEnv reads secrets from environment variables.
	ProviderTypeEnv ProviderType = "env"
	// ProviderTypeVault reads secrets from HashiCorp Vault KV v2.
	ProviderTypeVault ProviderType = "vault"
)

var (
	// ErrSecretNotFound is returned when a secret does not exist.
	ErrSecretNotFound = errors.New("secret not found")
	// ErrProviderNotConfigured is returned when required provider
	// settings are missing.
	ErrProviderNotConfigured = errors.New("provider not configured")
	// ErrInvalidPath is returned for an empty or malformed secret path.
	ErrInvalidPath = errors.New("invalid secret path")
)

// Secret is the key-value payload of one secret.
type Secret struct {
	Name string
	Data map[string][]byte
}

// GetString returns a string value from the secret data.
func (s *Secret) GetString(key string) (string, bool) {
	v, ok := s.GetBytes(key)
	if !ok {
		return "", false
	}
	return string(v), true
}

// GetBytes returns a byte slice value from the secret data.
func (s *Secret) GetBytes(key string) ([]byte, bool) {
	if s == nil || s.Data == nil {
		return nil, false
	}
	v, ok := s.Data[key]
	return v, ok
}

// Provider is a read-only secrets backend.
type Provider interface {
	// Type returns the provider type.
	Type() ProviderType

	// GetSecret retrieves a secret by path. Path format depends on the
	// provider: "SECRET_NAME" for env, "path/to/secret" for vault.
	GetSecret(ctx context.Context, path string) (*Secret, error)

	// HealthCheck returns nil when the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases provider resources.
	Close() error
}

// Config selects and configures a provider.
type Config struct {
	Type  ProviderType `yaml:"type"`
	Env   EnvConfig    `yaml:"env"`
	Vault VaultConfig  `yaml:"vault"`
}

// NewProvider builds the provider named by cfg.Type.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Type {
	case ProviderTypeEnv, "":
		return NewEnvProvider(cfg.Env), nil
	case ProviderTypeVault:
		return NewVaultProvider(ctx, cfg.Vault)
	default:
		return nil, fmt.Errorf("%w: unknown provider type %q", ErrProviderNotConfigured, cfg.Type)
	}
}
