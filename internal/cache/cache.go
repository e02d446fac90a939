package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache is an ephemeral byte cache. It is never a source of truth.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// GetJSON loads key into a T. Misses, backend errors and undecodable entries
// all report ok=false so callers fall through to storage.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool) {
	var zero T
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false
	}
	return v, true
}

// SetJSON stores v under key. A non-positive ttl stores nothing.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, raw, ttl)
}

// NoopCache is used when Redis is not configured.
type NoopCache struct{}

func NewNoop() *NoopCache {
	return &NoopCache{}
}

func (*NoopCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (*NoopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (*NoopCache) Delete(context.Context, string) error { return nil }

func (*NoopCache) DeletePrefix(context.Context, string) error { return nil }
