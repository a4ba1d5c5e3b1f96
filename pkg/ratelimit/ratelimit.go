// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit provides a non-blocking per-key token bucket limiter.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRequestsPerMinute is the bucket capacity used by the server.
const DefaultRequestsPerMinute = 100

// GlobalKey is the key charged for every tool invocation.
const GlobalKey = "global"

// Limiter admits calls per key. Each key owns a bucket holding up to
// requestsPerMinute tokens that refills continuously at requestsPerMinute/60
// tokens per second. Buckets are created on first use and never evicted.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	capacity int
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a limiter. A capacity below 1 is clamped to 1.
func New(requestsPerMinute int, opts ...Option) *Limiter {
	l := &Limiter{
		buckets:  make(map[string]*rate.Limiter),
		capacity: max(requestsPerMinute, 1),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether a call for key is admitted, consuming one token if so.
// It never blocks. A rejected call leaves the bucket unchanged.
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).AllowN(l.now(), 1)
}

// RetryAfter estimates how long until key has a whole token again.
func (l *Limiter) RetryAfter(key string) time.Duration {
	b := l.bucket(key)
	tokens := b.TokensAt(l.now())
	if tokens >= 1 {
		return 0
	}
	seconds := (1 - tokens) / float64(b.Limit())
	return time.Duration(math.Ceil(seconds * float64(time.Second)))
}

// Tokens returns the tokens currently available for key.
func (l *Limiter) Tokens(key string) float64 {
	return l.bucket(key).TokensAt(l.now())
}

// Capacity returns the bucket size after clamping.
func (l *Limiter) Capacity() int {
	return l.capacity
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		// New buckets start full.
		b = rate.NewLimiter(rate.Limit(float64(l.capacity)/60.0), l.capacity)
		l.buckets[key] = b
	}
	return b
}
