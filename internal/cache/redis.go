package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store shared by every instance of the service.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore returns a store whose keys are namespaced under prefix.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// Exists reports whether key is present in Redis.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Set stores key with a TTL.
func (s *RedisStore) Set(ctx context.Context, key string, ttl time.Duration) error {
	return s.rdb.Set(ctx, s.key(key), "1", ttl).Err()
}

// Incr starts the window on the first hit so later hits do not extend it.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	k := s.key(key)
	n, err := s.rdb.Incr(ctx, k).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := s.rdb.Expire(ctx, k, window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}

// New returns a Redis backed store when rdb is non-nil and an in-memory
// one otherwise.
func New(rdb *redis.Client, prefix string) Store {
	if rdb == nil {
		return NewMemoryStore()
	}
	return NewRedisStore(rdb, prefix)
}
