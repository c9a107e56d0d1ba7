// Package cache stores computed API metadata, such as merged filter descriptions,
// in memory or in Redis. Values are msgpack-encoded.
package cache

import (
	"context"
	"errors"
	"time"
)

// Cache is implemented by every backend
type Cache interface {
	// Get returns the value stored under key, or ErrCacheMiss
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A zero ttl uses the backend default; a negative one never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// Clear removes every key under the backend prefix
	Clear(ctx context.Context) error

	Exists(ctx context.Context, key string) (bool, error)
}

// Config holds the settings shared by all backends
type Config struct {
	DefaultTTL time.Duration
	// Prefix namespaces every key
	Prefix string
}

// DefaultConfig returns the configuration used when none is given
func DefaultConfig() Config {
	return Config{
		DefaultTTL: time.Hour,
		Prefix:     "apiorm:",
	}
}

// ErrCacheMiss is returned when a key is absent or expired
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.Key
}

// IsCacheMiss reports whether err is, or wraps, a cache miss
func IsCacheMiss(err error) bool {
	var miss ErrCacheMiss
	return errors.As(err, &miss)
}

func ttlOrDefault(ttl time.Duration, cfg Config) time.Duration {
	if ttl == 0 {
		return cfg.DefaultTTL
	}
	return ttl
}
