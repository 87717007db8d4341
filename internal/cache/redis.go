package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores JSON-encoded values in Redis so every API replica sees
// the same invalidations.
type RedisCache[T any] struct {
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

// NewRedisClient connects and pings addr.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

// NewRedisCache stores keys under namespace+":".
func NewRedisCache[T any](rdb *redis.Client, namespace string, ttl time.Duration) *RedisCache[T] {
	return &RedisCache[T]{rdb: rdb, ttl: ttl, namespace: namespace}
}

func (c *RedisCache[T]) key(k string) string {
	return c.namespace + ":" + k
}

func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("redis get: %w", err)
	}
	v, err := decodeValue[T](raw)
	if err != nil {
		// A value from an older release is treated as a miss.
		return zero, false, nil
	}
	return v, true, nil
}

func (c *RedisCache[T]) Set(ctx context.Context, key string, data T) error {
	raw, err := encodeValue(data)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key(key), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache[T]) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (c *RedisCache[T]) DeletePrefix(ctx context.Context, prefix string) error {
	iter := c.rdb.Scan(ctx, 0, c.key(prefix)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// encodeValue stores byte slices as-is and JSON-encodes everything else.
// json.RawMessage values pass through json.Marshal unchanged.
func encodeValue[T any](v T) ([]byte, error) {
	if b, ok := any(v).([]byte); ok {
		return b, nil
	}
	return json.Marshal(v)
}

func decodeValue[T any](raw []byte) (T, error) {
	var v T
	if _, ok := any(v).([]byte); ok {
		return any(raw).(T), nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}
