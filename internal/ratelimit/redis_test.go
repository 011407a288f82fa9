// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, RedisConfig{KeyPrefix: "test:rl:", Timeout: time.Second}), server
}

func TestRedisStore_SlidingWindow(t *testing.T) {
	tt := []struct {
		desc          string
		runs          int
		limit         int
		step          time.Duration
		wantAllowed   bool
		wantRemaining int
	}{
		{desc: "allows requests under the limit", runs: 3, limit: 5, wantAllowed: true, wantRemaining: 2},
		{desc: "allows the last slot", runs: 5, limit: 5, wantAllowed: true, wantRemaining: 0},
		{desc: "denies requests over the limit", runs: 6, limit: 5, wantAllowed: false, wantRemaining: 0},
		{desc: "old entries leave the window", runs: 8, limit: 5, step: 15 * time.Second, wantAllowed: true, wantRemaining: 0},
	}

	for _, ts := range tt {
		t.Run(ts.desc, func(t *testing.T) {
			store, _ := newRedisStore(t)
			now := time.Date(2026, time.June, 23, 10, 15, 30, 0, time.UTC)
			l := New(store, WithClock(func() time.Time { return now }))

			var d Decision
			for i := 0; i < ts.runs; i++ {
				var err error
				d, err = l.Check(context.Background(), "client:/login", ts.limit, time.Minute)
				require.NoError(t, err)
				now = now.Add(ts.step)
			}

			assert.Equal(t, ts.wantAllowed, d.Allowed)
			assert.Equal(t, ts.wantRemaining, d.Remaining)
			assert.False(t, d.FailOpen)
		})
	}
}

func TestRedisStore_WindowBoundary(t *testing.T) {
	store, _ := newRedisStore(t)
	now := time.Date(2026, time.June, 23, 10, 15, 30, 0, time.UTC)
	l := New(store, WithClock(func() time.Time { return now }))

	d, err := l.Check(context.Background(), "client:/login", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	now = now.Add(time.Minute - time.Microsecond)
	d, err = l.Check(context.Background(), "client:/login", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "entry is still inside the window")

	now = now.Add(time.Microsecond)
	d, err = l.Check(context.Background(), "client:/login", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "entry exactly one window old has expired")
}

func TestRedisStore_ResetAtFromOldest(t *testing.T) {
	store, _ := newRedisStore(t)
	t0 := time.Date(2026, time.June, 23, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := store.Take(ctx, "k", t0.Add(time.Duration(i)*time.Second), 2, time.Minute)
		require.NoError(t, err)
	}
	u, err := store.Take(ctx, "k", t0.Add(10*time.Second), 2, time.Minute)
	require.NoError(t, err)

	assert.False(t, u.Allowed)
	assert.Equal(t, 2, u.Count)
	assert.True(t, u.Oldest.Equal(t0), "oldest = %v", u.Oldest)
}

func TestRedisStore_KeyHasExpiry(t *testing.T) {
	store, server := newRedisStore(t)

	_, err := store.Take(context.Background(), "k", time.Now(), 3, 30*time.Second)
	require.NoError(t, err)

	key := store.FormatKey("k")
	assert.True(t, server.Exists(key))
	assert.Greater(t, server.TTL(key), time.Duration(0))
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, server := newRedisStore(t)
	server.Close()

	_, err := store.Take(context.Background(), "k", time.Now(), 3, time.Minute)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.Error(t, store.Ping(context.Background()))
}
