package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisWithClient(client, "test:")
}

func TestRedis_Allow(t *testing.T) {
	ctx := context.Background()
	r := newTestRedis(t)

	limit := Limit{Requests: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		res, err := r.Allow(ctx, "tenant-1", limit)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 3, res.Limit)
	}

	res, err := r.Allow(ctx, "tenant-1", limit)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestRedis_IndependentKeys(t *testing.T) {
	ctx := context.Background()
	r := newTestRedis(t)

	limit := Limit{Requests: 1, Window: time.Minute}

	res, err := r.Allow(ctx, "tenant-1", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = r.Allow(ctx, "tenant-2", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRedis_Reset(t *testing.T) {
	ctx := context.Background()
	r := newTestRedis(t)

	limit := Limit{Requests: 1, Window: time.Minute}

	res, err := r.Allow(ctx, "tenant-1", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = r.Allow(ctx, "tenant-1", limit)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	require.NoError(t, r.Reset(ctx, "tenant-1"))

	res, err = r.Allow(ctx, "tenant-1", limit)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRedis_ZeroLimitAllowsAll(t *testing.T) {
	ctx := context.Background()
	r := newTestRedis(t)

	res, err := r.Allow(ctx, "tenant-1", Limit{})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
