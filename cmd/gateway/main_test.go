package main

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiconduit/conduit/internal/circuitbreaker"
	"github.com/apiconduit/conduit/internal/config"
	"github.com/apiconduit/conduit/internal/crypto"
)

func TestDecodeKey(t *testing.T) {
	key := make([]byte, crypto.KeySize)
	for i := range key {
		key[i] = byte(i)
	}

	t.Run("hex", func(t *testing.T) {
		decoded, err := decodeKey([]byte(hex.EncodeToString(key)))
		require.NoError(t, err)
		assert.Equal(t, key, decoded)
	})

	t.Run("base64", func(t *testing.T) {
		decoded, err := decodeKey([]byte(base64.StdEncoding.EncodeToString(key)))
		require.NoError(t, err)
		assert.Equal(t, key, decoded)
	})

	t.Run("raw", func(t *testing.T) {
		decoded, err := decodeKey(key)
		require.NoError(t, err)
		assert.Equal(t, key, decoded)
	})

	t.Run("wrong size", func(t *testing.T) {
		_, err := decodeKey([]byte("too-short"))
		assert.Error(t, err)
	})
}

func TestBreakerConfig(t *testing.T) {
	cfg := config.Default().Breaker
	bc := breakerConfig(cfg)

	assert.Equal(t, cfg.FailureThreshold, bc.FailureThreshold)
	assert.Equal(t, cfg.ResetTimeout.Duration(), bc.ResetTimeout)
	assert.Equal(t, cfg.SuccessThreshold, bc.SuccessThreshold)
	assert.Equal(t, cfg.Window.Duration(), bc.Window)
	assert.IsType(t, &circuitbreaker.Config{}, bc)
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("CONDUIT_TEST_VAR", "set")
	assert.Equal(t, "set", envOrDefault("CONDUIT_TEST_VAR", "fallback"))
	assert.Equal(t, "fallback", envOrDefault("CONDUIT_TEST_MISSING", "fallback"))
}
