package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/apiconduit/conduit/internal/observability"
)

// DefaultEnvPrefix is prepended to secret names when resolving
// environment variables.
const DefaultEnvPrefix = "CONDUIT_SECRET_"

// EnvConfig configures the environment variable provider.
type EnvConfig struct {
	// Prefix overrides DefaultEnvPrefix.
	Prefix string `yaml:"prefix"`

	Logger observability.Logger `yaml:"-"`
}

// EnvProvider reads secrets from environment variables. A JSON object
// value is exposed as multiple keys; any other value is exposed under
// the single key "value".
type EnvProvider struct {
	prefix string
	logger observability.Logger
}

// NewEnvProvider creates an environment variable provider.
func NewEnvProvider(cfg EnvConfig) *EnvProvider {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &EnvProvider{prefix: prefix, logger: logger}
}

func (p *EnvProvider) Type() ProviderType {
	return ProviderTypeEnv
}

// envName converts a secret path into the backing variable name:
// uppercased, separators folded to underscores, prefix applied.
func (p *EnvProvider) envName(path string) string {
	name := strings.ToUpper(path)
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, ".", "_")
	name = strings.ReplaceAll(name, "/", "_")
	return p.prefix + name
}

func (p *EnvProvider) GetSecret(_ context.Context, path string) (*Secret, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}

	envName := p.envName(path)
	value, exists := os.LookupEnv(envName)
	if !exists {
		return nil, fmt.Errorf("%w: environment variable %s not set", ErrSecretNotFound, envName)
	}

	data := make(map[string][]byte)
	var jsonData map[string]any
	if err := json.Unmarshal([]byte(value), &jsonData); err == nil {
		for k, v := range jsonData {
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
	} else {
		data["value"] = []byte(value)
	}

	p.logger.Debug("loaded secret from environment",
		observability.String("path", path),
		observability.Int("keys", len(data)),
	)

	return &Secret{Name: path, Data: data}, nil
}

func (p *EnvProvider) HealthCheck(context.Context) error {
	return nil
}

func (p *EnvProvider) Close() error {
	return nil
}
