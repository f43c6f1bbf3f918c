package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_Allow(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()
	defer l.Close()

	limit := Limit{Requests: 2, Window: time.Minute, Burst: 2}

	first, err := l.Allow(ctx, "client-a", limit)
	require.NoError(t, err)
	assert.True(t, first.Allowed)

	second, err := l.Allow(ctx, "client-a", limit)
	require.NoError(t, err)
	assert.True(t, second.Allowed)

	third, err := l.Allow(ctx, "client-a", limit)
	require.NoError(t, err)
	assert.False(t, third.Allowed)
	assert.Greater(t, third.RetryAfter, time.Duration(0))

	// Independent keys have independent buckets.
	other, err := l.Allow(ctx, "client-b", limit)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestLocal_Reset(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()
	defer l.Close()

	limit := Limit{Requests: 1, Window: time.Minute, Burst: 1}

	first, err := l.Allow(ctx, "client-a", limit)
	require.NoError(t, err)
	assert.True(t, first.Allowed)

	blocked, err := l.Allow(ctx, "client-a", limit)
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	require.NoError(t, l.Reset(ctx, "client-a"))

	again, err := l.Allow(ctx, "client-a", limit)
	require.NoError(t, err)
	assert.True(t, again.Allowed)
}

func TestLocal_ZeroLimitAllowsAll(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()
	defer l.Close()

	for i := 0; i < 50; i++ {
		res, err := l.Allow(ctx, "client-a", Limit{})
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
}

func TestNoopLimiter(t *testing.T) {
	var l NoopLimiter
	res, err := l.Allow(context.Background(), "any", Limit{Requests: 1, Window: time.Second})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.NoError(t, l.Reset(context.Background(), "any"))
	assert.NoError(t, l.Close())
}
