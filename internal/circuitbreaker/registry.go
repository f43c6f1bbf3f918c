package circuitbreaker

import (
	"sync"

	"github.com/apiconduit/conduit/internal/observability"
)

// Registry owns the breaker per connector id, creating breakers lazily
// on first access.
type Registry struct {
	breakers sync.Map
	logger   observability.Logger

	mu       sync.RWMutex
	defaults *Config
}

// NewRegistry creates a registry with the given default breaker config.
func NewRegistry(defaults *Config, logger observability.Logger) *Registry {
	if defaults == nil {
		defaults = DefaultConfig()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Registry{
		defaults: defaults,
		logger:   logger,
	}
}

// Get returns the breaker for the connector id, or nil if none exists yet.
func (r *Registry) Get(connectorID string) *Breaker {
	value, ok := r.breakers.Load(connectorID)
	if !ok {
		return nil
	}
	return value.(*Breaker)
}

// GetOrCreate returns the breaker for the connector id, creating it with
// the registry defaults on first access.
func (r *Registry) GetOrCreate(connectorID string) *Breaker {
	return r.GetOrCreateWithConfig(connectorID, r.Defaults())
}

// Defaults returns the current default breaker config.
func (r *Registry) Defaults() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults
}

// UpdateDefaults replaces the default breaker config. Existing breakers
// keep their config; the new defaults apply to breakers created later.
func (r *Registry) UpdateDefaults(defaults *Config) {
	if defaults == nil {
		return
	}
	r.mu.Lock()
	r.defaults = defaults
	r.mu.Unlock()
}

// GetOrCreateWithConfig returns the breaker for the connector id,
// creating it with the given per-connector config on first access.
// LoadOrStore resolves the create race; the loser's breaker is discarded.
func (r *Registry) GetOrCreateWithConfig(connectorID string, config *Config) *Breaker {
	if value, ok := r.breakers.Load(connectorID); ok {
		return value.(*Breaker)
	}

	breaker := NewBreaker(connectorID, config, r.logger)
	actual, loaded := r.breakers.LoadOrStore(connectorID, breaker)
	if loaded {
		return actual.(*Breaker)
	}

	r.logger.Debug("created circuit breaker",
		observability.String("connector", connectorID),
	)
	return breaker
}

// Remove drops the breaker for a connector id. Used when a connector is
// deleted; a later request recreates the breaker fresh.
func (r *Registry) Remove(connectorID string) {
	r.breakers.Delete(connectorID)
}

// Reset resets a single breaker to closed. Returns false if the
// connector has no breaker yet.
func (r *Registry) Reset(connectorID string) bool {
	breaker := r.Get(connectorID)
	if breaker == nil {
		return false
	}
	breaker.Reset()
	return true
}

// ResetAll resets all breakers to closed state.
func (r *Registry) ResetAll() {
	r.breakers.Range(func(_, value any) bool {
		value.(*Breaker).Reset()
		return true
	})
	r.logger.Info("reset all circuit breakers")
}

// Stats returns a snapshot of every breaker keyed by connector id.
func (r *Registry) Stats() map[string]Stats {
	stats := make(map[string]Stats)
	r.breakers.Range(func(key, value any) bool {
		stats[key.(string)] = value.(*Breaker).Stats()
		return true
	})
	return stats
}

// Count returns the number of breakers in the registry.
func (r *Registry) Count() int {
	count := 0
	r.breakers.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
