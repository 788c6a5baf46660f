// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package cache provides the key/value store used for refresh tokens and
// profile caching.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/samber/oops"
)

// Store is a key/value store with per-key expiry.
//
// Get never fails: connectivity problems and timeouts are reported as a miss.
// Set and Delete return errors; callers decide whether a failure is fatal.
type Store interface {
	// Get returns the value for key, or false if absent or unreadable.
	Get(ctx context.Context, key string) (string, bool)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key and returns the number of keys removed.
	// Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) (int64, error)
}

// Key namespaces.
const (
	refreshTokenPrefix = "auth:refresh_token:"
	profilePrefix      = "user:profile:"
)

// RefreshTokenKey is the slot holding the live refresh token for an identity.
func RefreshTokenKey(identityID string) string {
	return refreshTokenPrefix + identityID
}

// ProfileKey is the slot holding the cached public profile for an identity.
func ProfileKey(identityID string) string {
	return profilePrefix + identityID
}

// GetJSON reads key and decodes it into T. Undecodable values count as a miss.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, bool) {
	var v T
	raw, ok := s.Get(ctx, key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

// SetJSON encodes v as JSON and stores it under key.
func SetJSON[T any](ctx context.Context, s Store, key string, v T, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return oops.Code("CACHE_ENCODE_FAILED").With("key", key).Wrap(err)
	}
	return s.Set(ctx, key, string(data), ttl)
}
