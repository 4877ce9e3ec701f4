// Package store abstracts the external key-value service the game runs
// against. All cross-instance coordination happens through these primitives —
// atomic counters, conditional set, list push/trim — never through in-process
// locks, since multiple server instances may run concurrently.
package store

import (
	"context"
	"time"
)

// KV is the minimal key-value surface the game needs. RedisKV is the
// production implementation; MemoryKV backs the tests.
//
// A ttl of 0 means no expiry.
type KV interface {
	// Get returns the string value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes a value unconditionally.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX writes only when the key is absent and reports whether this
	// caller won. The write-once primitive behind outcome commits,
	// settlement markers and history finalize markers.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// IncrBy atomically adds delta (may be negative) to an integer value,
	// treating a missing key as 0, and returns the new value.
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	// Del removes a key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// Expire sets a key's ttl. No-op if the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// LPush prepends values to a list.
	LPush(ctx context.Context, key string, values ...string) error

	// LTrim truncates a list to the inclusive index range [start, stop].
	LTrim(ctx context.Context, key string, start, stop int64) error

	// LRange returns list elements in [start, stop], newest first for lists
	// built with LPush.
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// HIncrBy atomically adds delta to a hash field, treating a missing
	// field as 0, and returns the new value.
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)

	// HGetAll returns all fields of a hash; empty map if the key is absent.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connection resources.
	Close() error
}
