package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: \":8080\"\n"), 0o600))

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}, nil)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer func() { require.NoError(t, w.Stop()) }()

	assert.Equal(t, ":8080", w.Current().Server.Address)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: \":9090\"\n"), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, ":9090", cfg.Server.Address)
		assert.Equal(t, ":9090", w.Current().Server.Address)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not observed")
	}
}

func TestWatcher_KeepsPreviousConfigOnInvalidEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: \":8080\"\n"), 0o600))

	w, err := NewWatcher(path, nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer func() { require.NoError(t, w.Stop()) }()

	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: sqlite\n"), 0o600))

	// Give the watcher time to process and reject the edit.
	time.Sleep(time.Second)
	assert.Equal(t, ":8080", w.Current().Server.Address)
}

func TestWatcher_StartFailsOnMissingFile(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil, nil)
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background()))
}
