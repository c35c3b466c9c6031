package redisclient

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// Memory is an in-process KV used when no Redis address is configured
type Memory struct {
	items *cache.Cache
}

func NewMemory() *Memory {
	return &Memory{items: cache.New(cache.NoExpiration, time.Minute)}
}

// expiration maps a Redis style TTL, where zero keeps the key, onto go-cache
func expiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return cache.NoExpiration
	}
	return ttl
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	v, ok := m.items.Get(key)
	if !ok {
		return "", ErrMissing
	}
	return v.(string), nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.items.Set(key, value, expiration(ttl))
	return nil
}

// SetNX relies on cache.Add, which fails while an unexpired item holds the key
func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := m.items.Add(key, value, expiration(ttl)); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.items.Delete(k)
	}
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error {
	m.items.Flush()
	return nil
}
