// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// DefaultTimeout bounds every cache round trip.
const DefaultTimeout = 2 * time.Second

// RedisStore implements Store on Redis.
type RedisStore struct {
	client  redis.UniversalClient
	timeout time.Duration
	logger  *slog.Logger
}

// NewRedisStore wraps an existing client. A non-positive timeout uses DefaultTimeout.
func NewRedisStore(client redis.UniversalClient, timeout time.Duration, logger *slog.Logger) (*RedisStore, error) {
	if client == nil {
		return nil, oops.Code("CACHE_INVALID_CONFIG").Errorf("redis client is required")
	}
	if logger == nil {
		return nil, oops.Code("CACHE_INVALID_CONFIG").Errorf("logger is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RedisStore{client: client, timeout: timeout, logger: logger}, nil
}

// NewRedisStoreFromURL connects using a redis:// URL.
func NewRedisStoreFromURL(url string, timeout time.Duration, logger *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("CACHE_INVALID_CONFIG").With("operation", "parse redis url").Wrap(err)
	}
	return NewRedisStore(redis.NewClient(opts), timeout, logger)
}

// Get returns the value for key. Errors other than a plain miss are logged
// and reported as absent.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		s.logger.WarnContext(ctx, "cache get failed, treating as miss", "key", key, "error", err)
		return "", false
	}
	return val, true
}

// Set stores value under key with the given ttl.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return oops.Code("CACHE_SET_FAILED").With("key", key).Wrap(err)
	}
	return nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return 0, oops.Code("CACHE_DELETE_FAILED").With("key", key).Wrap(err)
	}
	return n, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return oops.Code("CACHE_UNAVAILABLE").Wrap(err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return oops.Code("CACHE_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ Store = (*RedisStore)(nil)
