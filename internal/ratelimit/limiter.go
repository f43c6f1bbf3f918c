// Package ratelimit provides request rate limiting. A local token
// bucket limiter covers single-instance deployments; a Redis fixed
// window limiter shares state across gateway replicas.
package ratelimit

import (
	"context"
	"time"
)

// Limit is a rate limit policy.
type Limit struct {
	// Requests allowed per Window.
	Requests int

	// Window is the accounting period.
	Window time.Duration

	// Burst is the bucket size for the local limiter. Zero means
	// Requests.
	Burst int
}

// Result reports one admission decision.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits or rejects requests per key.
type Limiter interface {
	// Allow checks whether one request under key fits the limit.
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)

	// Reset clears accumulated state for a key.
	Reset(ctx context.Context, key string) error

	// Close releases limiter resources.
	Close() error
}

// NoopLimiter admits everything. Used when rate limiting is disabled.
type NoopLimiter struct{}

func (NoopLimiter) Allow(context.Context, string, Limit) (*Result, error) {
	return &Result{Allowed: true}, nil
}

func (NoopLimiter) Reset(context.Context, string) error { return nil }

func (NoopLimiter) Close() error { return nil }
