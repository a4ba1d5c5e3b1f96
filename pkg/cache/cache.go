// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package cache provides a bounded, insertion-ordered TTL cache.
//
// Entries expire lazily: Get removes an expired entry it finds, and Set sweeps
// every expired entry before inserting. There is no background goroutine.
// When the cache is full, the oldest inserted entry is evicted first; reading
// an entry does not refresh its position.
package cache

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultMaxSize is the capacity used when a non-positive size is requested.
const DefaultMaxSize = 1000

// KeySeparator joins the parts of a cache key.
const KeySeparator = ":"

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a TTL cache safe for concurrent use. The lock is held only for the
// in-memory read-check-write of each call.
type Cache[V any] struct {
	mu      sync.Mutex
	entries *orderedmap.OrderedMap[string, entry[V]]
	maxSize int
	now     func() time.Time
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithClock overrides the time source.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) {
		c.now = now
	}
}

// New creates a cache holding at most maxSize entries.
func New[V any](maxSize int, opts ...Option[V]) *Cache[V] {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	c := &Cache[V]{
		entries: orderedmap.New[string, entry[V]](),
		maxSize: maxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value stored under key if it has not expired. An expired
// entry is removed and reported as absent.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries.Get(key)
	if !ok {
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		c.entries.Delete(key)
		slog.Debug("cache entry expired", "key", key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for ttl. Expired entries are swept first, then
// the oldest entries are evicted until there is room. Replacing a key that is
// already present evicts nothing, even when the cache is full; the key keeps
// its insertion position and takes the new ttl.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepLocked(now)

	if _, exists := c.entries.Get(key); !exists {
		for c.entries.Len() >= c.maxSize {
			oldest := c.entries.Oldest()
			if oldest == nil {
				break
			}
			c.entries.Delete(oldest.Key)
			slog.Debug("cache entry evicted", "key", oldest.Key)
		}
	}

	c.entries.Set(key, entry[V]{value: value, expiresAt: now.Add(ttl)})
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Delete(key)
}

// Len returns the number of physically present entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = orderedmap.New[string, entry[V]]()
}

// Keys returns the present keys in insertion order.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.entries.Len())
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// MaxSize returns the configured capacity.
func (c *Cache[V]) MaxSize() int {
	return c.maxSize
}

func (c *Cache[V]) sweepLocked(now time.Time) {
	var expired []string
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		if !now.Before(pair.Value.expiresAt) {
			expired = append(expired, pair.Key)
		}
	}
	for _, key := range expired {
		c.entries.Delete(key)
	}
	if len(expired) > 0 {
		slog.Debug("cache swept expired entries", "count", len(expired))
	}
}

// MakeKey joins a category tag and its parameters into a cache key. Each part
// is rendered with %v, so nil renders as "<nil>"; callers pick their own
// rendering for absent values.
func MakeKey(parts ...any) string {
	rendered := make([]string, len(parts))
	for i, p := range parts {
		rendered[i] = fmt.Sprint(p)
	}
	return strings.Join(rendered, KeySeparator)
}
