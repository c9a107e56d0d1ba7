package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Key builds a fixed-length key from its parts. The namespace stays readable.
func Key(namespace string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return namespace + ":" + hex.EncodeToString(sum[:16])
}

// GetObject decodes the msgpack value stored under key into v
func GetObject(ctx context.Context, c Cache, key string, v interface{}) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return nil
}

// SetObject msgpack-encodes v under key
func SetObject(ctx context.Context, c Cache, key string, v interface{}, ttl time.Duration) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return c.Set(ctx, key, data, ttl)
}

// Remember returns the cached value of key, computing and storing it on a miss.
// Errors of the backend other than a miss are returned as is.
func Remember(ctx context.Context, c Cache, key string, ttl time.Duration, v interface{}, compute func() error) error {
	err := GetObject(ctx, c, key, v)
	if err == nil || !IsCacheMiss(err) {
		return err
	}
	if err := compute(); err != nil {
		return err
	}
	return SetObject(ctx, c, key, v, ttl)
}
