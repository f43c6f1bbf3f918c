package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/apiconduit/conduit/internal/observability"
)

// VaultConfig configures the Vault KV v2 provider.
type VaultConfig struct {
	// Address is the Vault server address.
	Address string `yaml:"address"`

	// Token authenticates the client. AppRole and Kubernetes auth are
	// not wired; deployments needing them run a Vault agent sidecar.
	Token string `yaml:"token"`

	// Namespace is the Vault namespace (Enterprise only).
	Namespace string `yaml:"namespace"`

	// MountPoint is the KV v2 secrets engine mount. Default "secret".
	MountPoint string `yaml:"mountPoint"`

	// Timeout is the per-request timeout. Default 30s.
	Timeout time.Duration `yaml:"timeout"`

	Logger observability.Logger `yaml:"-"`
}

// VaultProvider reads secrets from a HashiCorp Vault KV v2 engine.
type VaultProvider struct {
	client     *vaultapi.Client
	mountPoint string
	logger     observability.Logger
}

// NewVaultProvider connects a Vault client. The connection is verified
// lazily; call HealthCheck to probe it eagerly.
func NewVaultProvider(_ context.Context, cfg VaultConfig) (*VaultProvider, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: vault address is required", ErrProviderNotConfigured)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	apiCfg := vaultapi.DefaultConfig()
	apiCfg.Address = cfg.Address
	if cfg.Timeout > 0 {
		apiCfg.Timeout = cfg.Timeout
	} else {
		apiCfg.Timeout = 30 * time.Second
	}

	client, err := vaultapi.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	mountPoint := cfg.MountPoint
	if mountPoint == "" {
		mountPoint = "secret"
	}

	logger.Info("vault secrets provider initialized",
		observability.String("address", cfg.Address),
		observability.String("mountPoint", mountPoint),
	)

	return &VaultProvider{
		client:     client,
		mountPoint: mountPoint,
		logger:     logger,
	}, nil
}

func (p *VaultProvider) Type() ProviderType {
	return ProviderTypeVault
}

func (p *VaultProvider) GetSecret(ctx context.Context, path string) (*Secret, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrInvalidPath
	}

	kv, err := p.client.KVv2(p.mountPoint).Get(ctx, path)
	if err != nil {
		if strings.Contains(err.Error(), "secret not found") {
			return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, path)
		}
		return nil, fmt.Errorf("read vault secret %s: %w", path, err)
	}
	if kv == nil || len(kv.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, path)
	}

	data := make(map[string][]byte, len(kv.Data))
	for k, v := range kv.Data {
		switch val := v.(type) {
		case string:
			data[k] = []byte(val)
		default:
			encoded, err := json.Marshal(val)
			if err != nil {
				continue
			}
			data[k] = encoded
		}
	}

	p.logger.Debug("loaded secret from vault",
		observability.String("path", path),
		observability.Int("keys", len(data)),
	)

	return &Secret{Name: path, Data: data}, nil
}

func (p *VaultProvider) HealthCheck(ctx context.Context) error {
	health, err := p.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check: %w", err)
	}
	if !health.Initialized || health.Sealed {
		return fmt.Errorf("vault not ready: initialized=%t sealed=%t", health.Initialized, health.Sealed)
	}
	return nil
}

func (p *VaultProvider) Close() error {
	return nil
}
