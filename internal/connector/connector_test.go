package connector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/apiconduit/conduit/internal/circuitbreaker"
)

func TestAuthKind_RequiresSecret(t *testing.T) {
	tests := []struct {
		kind AuthKind
		want bool
	}{
		{AuthNone, false},
		{AuthKind(""), false},
		{AuthAPIKey, true},
		{AuthBearer, true},
		{AuthBasic, true},
		{AuthOAuth2, true},
		{AuthCustom, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.RequiresSecret())
		})
	}
}

func TestConnector_BreakerConfig(t *testing.T) {
	defaults := &circuitbreaker.Config{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		SuccessThreshold: 2,
	}

	t.Run("zero values fall back to defaults", func(t *testing.T) {
		c := &Connector{ID: "c1"}
		cfg := c.BreakerConfig(defaults)
		assert.Equal(t, 5, cfg.FailureThreshold)
		assert.Equal(t, 30*time.Second, cfg.ResetTimeout)
		assert.Equal(t, 2, cfg.SuccessThreshold)
		assert.False(t, cfg.Disabled)
	})

	t.Run("connector overrides win", func(t *testing.T) {
		c := &Connector{
			ID: "c1",
			Resilience: Resilience{
				FailureThreshold: 3,
				ResetTimeout:     10 * time.Second,
				SuccessThreshold: 1,
				BreakerDisabled:  true,
			},
		}
		cfg := c.BreakerConfig(defaults)
		assert.Equal(t, 3, cfg.FailureThreshold)
		assert.Equal(t, 10*time.Second, cfg.ResetTimeout)
		assert.Equal(t, 1, cfg.SuccessThreshold)
		assert.True(t, cfg.Disabled)
	})

	t.Run("nil defaults use built-ins", func(t *testing.T) {
		c := &Connector{ID: "c1"}
		cfg := c.BreakerConfig(nil)
		assert.Equal(t, circuitbreaker.DefaultConfig().FailureThreshold, cfg.FailureThreshold)
	})

	t.Run("defaults are not mutated", func(t *testing.T) {
		c := &Connector{
			ID:         "c1",
			Resilience: Resilience{FailureThreshold: 1},
		}
		_ = c.BreakerConfig(defaults)
		assert.Equal(t, 5, defaults.FailureThreshold)
	})
}

func TestConnector_RequestTimeout(t *testing.T) {
	c := &Connector{Timeout: 2 * time.Second}
	assert.Equal(t, 2*time.Second, c.RequestTimeout(30*time.Second))

	c.Timeout = 0
	assert.Equal(t, 30*time.Second, c.RequestTimeout(30*time.Second))
}
