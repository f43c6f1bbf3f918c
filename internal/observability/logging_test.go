package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{name: "defaults", cfg: DefaultLogConfig()},
		{name: "console format", cfg: LogConfig{Level: "debug", Format: "console", Output: "stderr"}},
		{name: "invalid level", cfg: LogConfig{Level: "chatty"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestLogger_WithContext(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := NewZapAdapter(zap.New(core))

	ctx := ContextWithRequestID(context.Background(), "req-123")
	logger.WithContext(ctx).Info("hello")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "hello", entry.Message)
	assert.Equal(t, "req-123", entry.ContextMap()["request_id"])
}

func TestLogger_WithContext_NoRequestID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := NewZapAdapter(zap.New(core))

	logger.WithContext(context.Background()).Info("plain")

	require.Equal(t, 1, logs.Len())
	assert.Empty(t, logs.All()[0].Context)
}

func TestRequestIDFromContext(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))

	ctx := ContextWithRequestID(context.Background(), "abc")
	assert.Equal(t, "abc", RequestIDFromContext(ctx))
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()

	// Must not panic and With must keep returning a usable logger.
	logger.Debug("x")
	logger.Info("x")
	logger.Warn("x")
	logger.Error("x")
	assert.NoError(t, logger.Sync())
	assert.NotNil(t, logger.With(String("k", "v")))
	assert.NotNil(t, logger.WithContext(context.Background()))
}

func TestNewTracer_Disabled(t *testing.T) {
	tracer, err := NewTracer(TracerConfig{ServiceName: "conduit", Enabled: false})
	require.NoError(t, err)

	ctx, span := tracer.Start(context.Background(), "test")
	assert.NotNil(t, ctx)
	span.End()

	assert.NoError(t, tracer.Shutdown(context.Background()))
}
