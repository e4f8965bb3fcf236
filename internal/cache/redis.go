package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Domenick1991/parking/config"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

const scanBatch = 500

type RedisCache struct {
	client redis.UniversalClient
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
}

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, errors.Wrapf(err, "redis get %s", key)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, errors.Wrapf(err, "decode %s", key)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return errors.Wrapf(c.client.Set(ctx, key, payload, ttl).Err(), "redis set %s", key)
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrap(c.client.Del(ctx, keys...).Err(), "redis del")
}

func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := c.scan(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, errors.Wrap(err, "redis del")
	}
	return int(n), nil
}

func (c *RedisCache) Count(ctx context.Context, prefix string) (int, error) {
	keys, err := c.scan(ctx, prefix)
	return len(keys), err
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) scan(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrapf(err, "redis scan %s*", prefix)
	}
	return keys, nil
}

var _ Backend = (*RedisCache)(nil)
