package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// localEntry pairs a token bucket with its last use for eviction.
type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Local is an in-process token bucket limiter keyed by client. Idle
// buckets are evicted so the map does not grow with client churn.
type Local struct {
	mu      sync.Mutex
	entries map[string]*localEntry

	idleAfter time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewLocal creates a local limiter and starts its eviction loop.
func NewLocal() *Local {
	l := &Local{
		entries:   make(map[string]*localEntry),
		idleAfter: 10 * time.Minute,
		stop:      make(chan struct{}),
	}
	go l.evictLoop()
	return l
}

func (l *Local) Allow(_ context.Context, key string, limit Limit) (*Result, error) {
	if limit.Requests <= 0 || limit.Window <= 0 {
		return &Result{Allowed: true}, nil
	}

	burst := limit.Burst
	if burst <= 0 {
		burst = limit.Requests
	}
	perSecond := rate.Limit(float64(limit.Requests) / limit.Window.Seconds())

	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &localEntry{limiter: rate.NewLimiter(perSecond, burst)}
		l.entries[key] = entry
	} else {
		// Policy may change between calls when routes are updated.
		if entry.limiter.Limit() != perSecond || entry.limiter.Burst() != burst {
			entry.limiter.SetLimit(perSecond)
			entry.limiter.SetBurst(burst)
		}
	}
	entry.lastSeen = time.Now()
	limiter := entry.limiter
	l.mu.Unlock()

	reservation := limiter.Reserve()
	delay := reservation.Delay()
	if delay > 0 {
		reservation.Cancel()
		recordDecision("local", false)
		return &Result{
			Allowed:    false,
			Limit:      limit.Requests,
			RetryAfter: delay,
		}, nil
	}

	recordDecision("local", true)
	return &Result{
		Allowed:   true,
		Limit:     limit.Requests,
		Remaining: int(limiter.Tokens()),
	}, nil
}

func (l *Local) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
	return nil
}

func (l *Local) Close() error {
	l.stopOnce.Do(func() { close(l.stop) })
	return nil
}

func (l *Local) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for key, entry := range l.entries {
				if now.Sub(entry.lastSeen) > l.idleAfter {
					delete(l.entries, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

var _ Limiter = (*Local)(nil)
