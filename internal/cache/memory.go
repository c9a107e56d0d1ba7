package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is a process-local Cache with expiry
type MemoryCache struct {
	data   sync.Map
	config Config
	cancel context.CancelFunc
}

type entry struct {
	value   []byte
	expires time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// NewMemoryCache creates a memory cache with the default configuration
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithConfig(DefaultConfig())
}

// NewMemoryCacheWithConfig creates a memory cache. Expired entries are purged every
// minute until Close is called.
func NewMemoryCacheWithConfig(config Config) *MemoryCache {
	ctx, cancel := context.WithCancel(context.Background())
	m := &MemoryCache{config: config, cancel: cancel}
	go m.purge(ctx, time.Minute)
	return m
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k := m.config.Prefix + key
	v, ok := m.data.Load(k)
	if !ok {
		return nil, ErrCacheMiss{Key: key}
	}
	e := v.(entry)
	if e.expired(time.Now()) {
		m.data.Delete(k)
		return nil, ErrCacheMiss{Key: key}
	}
	return e.value, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := entry{value: append([]byte(nil), value...)}
	if ttl = ttlOrDefault(ttl, m.config); ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	m.data.Store(m.config.Prefix+key, e)
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data.Delete(m.config.Prefix + key)
	return nil
}

func (m *MemoryCache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data.Range(func(k, _ interface{}) bool {
		m.data.Delete(k)
		return true
	})
	return nil
}

func (m *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.Get(ctx, key)
	if IsCacheMiss(err) {
		return false, nil
	}
	return err == nil, err
}

// Close stops the purge goroutine
func (m *MemoryCache) Close() error {
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

func (m *MemoryCache) purge(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.data.Range(func(k, v interface{}) bool {
				if v.(entry).expired(now) {
					m.data.Delete(k)
				}
				return true
			})
		}
	}
}
