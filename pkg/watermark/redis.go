package watermark

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV is the subset of the Redis client the store needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// RedisStore persists watermarks as RFC 3339 strings under a key prefix.
type RedisStore struct {
	kv     KV
	prefix string
}

func NewRedisStore(kv KV, prefix string) *RedisStore {
	return &RedisStore{kv: kv, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) (time.Time, bool, error) {
	raw, err := s.kv.Get(ctx, s.prefix+key)
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read watermark %s: %w", key, err)
	}
	t, err := Parse(raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read watermark %s: %w", key, err)
	}
	return t, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, t time.Time) error {
	if err := s.kv.Set(ctx, s.prefix+key, Format(t), 0); err != nil {
		return fmt.Errorf("failed to write watermark %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.kv.Del(ctx, s.prefix+key); err != nil {
		return fmt.Errorf("failed to delete watermark %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) (map[string]time.Time, error) {
	keys, err := s.kv.Keys(ctx, s.prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to list watermarks: %w", err)
	}
	out := make(map[string]time.Time, len(keys))
	for _, k := range keys {
		name := strings.TrimPrefix(k, s.prefix)
		t, ok, err := s.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			out[name] = t
		}
	}
	return out, nil
}
