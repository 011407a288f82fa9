// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisStoreName = "redis"

// slidingLogScript purges, counts and conditionally records in one atomic step.
// Scores are Unix microseconds, passed as strings so that Lua never formats
// them as floating point. Rejected attempts are not recorded.
//
// KEYS[1] log key
// ARGV[1] now, ARGV[2] cutoff now-window (entries at or before it are purged), ARGV[3] limit,
// ARGV[4] unique member, ARGV[5] key expiry in milliseconds
// returns {allowed (0|1), count before this attempt, oldest score or 0}
var slidingLogScript = redis.NewScript(`
local key = KEYS[1]

redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
local count = redis.call('ZCARD', key)

local allowed = 0
if count < tonumber(ARGV[3]) then
  redis.call('ZADD', key, ARGV[1], ARGV[4])
  redis.call('PEXPIRE', key, ARGV[5])
  allowed = 1
end

local oldest = 0
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if first[2] then
  oldest = tonumber(first[2])
end

return {allowed, count, oldest}
`)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	// KeyPrefix namespaces the sorted sets, e.g. "reqguard:rl:".
	KeyPrefix string

	// Timeout bounds each Take call.
	// Default: 50ms
	Timeout time.Duration
}

// RedisStore keeps sliding logs in Redis sorted sets so that several guard
// instances share one view of each identifier.
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// NewRedisStore creates a store on client.
func NewRedisStore(client redis.UniversalClient, cfg RedisConfig) *RedisStore {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 50 * time.Millisecond
	}
	return &RedisStore{
		client:  client,
		prefix:  cfg.KeyPrefix,
		timeout: cfg.Timeout,
	}
}

// Name implements Store.
func (s *RedisStore) Name() string {
	return redisStoreName
}

// Take implements Store.
func (s *RedisStore) Take(ctx context.Context, key string, now time.Time, limit int, window time.Duration) (Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := slidingLogScript.Run(ctx, s.client, []string{s.prefix + key},
		strconv.FormatInt(now.UnixMicro(), 10),
		strconv.FormatInt(now.Add(-window).UnixMicro(), 10),
		limit,
		uuid.New().String(),
		strconv.FormatInt(window.Milliseconds()+1, 10),
	).Int64Slice()
	if err != nil {
		return Usage{}, fmt.Errorf("%w: sliding log for key %v: %w", ErrStoreUnavailable, key, err)
	}
	if len(res) != 3 {
		return Usage{}, fmt.Errorf("%w: unexpected script reply %v", ErrStoreUnavailable, res)
	}

	usage := Usage{
		Allowed: res[0] == 1,
		Count:   int(res[1]),
	}
	if res[2] > 0 {
		usage.Oldest = time.UnixMicro(res[2])
	}
	return usage, nil
}

// Ping checks connectivity, for health endpoints.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// FormatKey is exposed for tests and tooling that inspect the sorted sets.
func (s *RedisStore) FormatKey(key string) string {
	return s.prefix + key
}
