package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript atomically counts a request against the current
// window and returns {allowed, remaining, reset_ms}.
var fixedWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])

	local window_start = math.floor(now / window_ms) * window_ms
	local window_key = key .. ':' .. window_start

	local count = tonumber(redis.call('GET', window_key) or '0')

	local allowed = 0
	if count < limit then
		count = redis.call('INCR', window_key)
		if count == 1 then
			redis.call('PEXPIRE', window_key, window_ms)
		end
		allowed = 1
	end

	local reset_ms = window_start + window_ms - now

	return {allowed, limit - count, reset_ms}
`)

// RedisConfig configures the shared limiter.
type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	PoolSize int           `yaml:"poolSize"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Redis is a fixed window limiter sharing counters across replicas.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects a client and verifies it with a ping.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "ratelimit:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     poolSize,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Redis{client: client, prefix: prefix}, nil
}

// NewRedisWithClient wraps an existing client. Used by tests.
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	if limit.Requests <= 0 || limit.Window <= 0 {
		return &Result{Allowed: true}, nil
	}

	now := time.Now().UnixMilli()
	raw, err := fixedWindowScript.Run(ctx, r.client,
		[]string{r.prefix + key},
		limit.Requests, limit.Window.Milliseconds(), now,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}

	values, ok := raw.([]any)
	if !ok || len(values) != 3 {
		return nil, fmt.Errorf("rate limit script returned unexpected result: %T", raw)
	}
	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	resetMS, _ := values[2].(int64)

	result := &Result{
		Allowed:   allowed == 1,
		Limit:     limit.Requests,
		Remaining: int(remaining),
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	if !result.Allowed {
		result.RetryAfter = time.Duration(resetMS) * time.Millisecond
	}

	recordDecision("redis", result.Allowed)
	return result, nil
}

func (r *Redis) Reset(ctx context.Context, key string) error {
	iter := r.client.Scan(ctx, 0, r.prefix+key+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("delete rate limit key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan rate limit keys: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Limiter = (*Redis)(nil)
