// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestCache_GetWithinTTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New[string](10, WithClock[string](clock.Now))

	c.Set("search:nginx", "result", 300*time.Second)

	clock.Advance(299 * time.Second)
	got, ok := c.Get("search:nginx")
	require.True(t, ok)
	assert.Equal(t, "result", got)
}

func TestCache_ExpiresAtTTL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		elapsed time.Duration
		present bool
	}{
		{"just before expiry", 300*time.Second - time.Millisecond, true},
		{"exactly at expiry", 300 * time.Second, false},
		{"after expiry", 301 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clock := newFakeClock()
			c := New[int](10, WithClock[int](clock.Now))
			c.Set("k", 1, 300*time.Second)

			clock.Advance(tt.elapsed)
			_, ok := c.Get("k")
			assert.Equal(t, tt.present, ok)
			if !tt.present {
				assert.Equal(t, 0, c.Len(), "expired entry is removed on read")
			}
		})
	}
}

func TestCache_MissingKey(t *testing.T) {
	t.Parallel()

	c := New[string](10)
	got, ok := c.Get("nope")
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestCache_CapacityEvictsOldestInserted(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New[int](3, WithClock[int](clock.Now))

	c.Set("a", 1, time.Hour)
	c.Set("b", 2, time.Hour)
	c.Set("c", 3, time.Hour)

	// Reading "a" does not protect it.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("d", 4, time.Hour)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"b", "c", "d"}, c.Keys())
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestCache_SizeNeverExceedsMax(t *testing.T) {
	t.Parallel()

	c := New[int](5)
	for i := range 50 {
		c.Set(fmt.Sprintf("k%d", i), i, time.Hour)
		assert.LessOrEqual(t, c.Len(), 5)
	}
	assert.Equal(t, []string{"k45", "k46", "k47", "k48", "k49"}, c.Keys())
}

func TestCache_SetSweepsExpiredBeforeEvicting(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New[string](3, WithClock[string](clock.Now))

	c.Set("old", "x", time.Minute)
	c.Set("short", "y", time.Second)
	c.Set("long", "z", time.Hour)

	clock.Advance(2 * time.Second)
	c.Set("new", "w", time.Hour)

	// "short" was swept, so nothing live had to be evicted.
	assert.Equal(t, []string{"old", "long", "new"}, c.Keys())
}

func TestCache_ResetKeepsPositionAndRefreshesTTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New[string](2, WithClock[string](clock.Now))

	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)

	clock.Advance(30 * time.Second)
	c.Set("a", "1b", time.Minute)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"a", "b"}, c.Keys())
	got, ok := c.Get("b")
	require.True(t, ok, "re-setting a key in a full cache evicts nothing")
	assert.Equal(t, "2", got)

	clock.Advance(45 * time.Second)
	got, ok = c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1b", got)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCache_DeleteAndClear(t *testing.T) {
	t.Parallel()

	c := New[int](0)
	assert.Equal(t, DefaultMaxSize, c.MaxSize())

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Delete("a")
	assert.Equal(t, []string{"b"}, c.Keys())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := New[int](50)
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				key := fmt.Sprintf("g%d-%d", g, i%80)
				c.Set(key, i, time.Minute)
				c.Get(key)
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 50)
}

func TestMakeKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "search:nginx:25:1:undefined:undefined",
		MakeKey("search", "nginx", 25, 1, "undefined", "undefined"))
	assert.Equal(t, "manifest:library/nginx:latest", MakeKey("manifest", "library/nginx", "latest"))
	assert.Equal(t, "search:q:10:2:true:false", MakeKey("search", "q", 10, 2, true, false))
	assert.NotEqual(t, MakeKey("tags", "a", 1), MakeKey("repo", "a", 1))
}
