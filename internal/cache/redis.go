package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alphacouncil/core/internal/obslog"
)

const staleShadowSuffix = "::stale"

// RedisCache backs the core's cache with Redis in a read-through idiom:
// live values are written synchronously on Set, but callers in specialist
// hot paths should treat a Redis hiccup as a miss, not a hard failure,
// which Get/GetWithExpiryStatus both do by swallowing transport errors.
//
// Stale-read support stores a second "shadow" copy with a longer TTL
// (value TTL + staleGrace) under key+"::stale"; Redis has no native
// "expired but still readable" semantics, so the shadow key is the
// straightforward way to get one.
type RedisCache struct {
	client     *redis.Client
	staleGrace time.Duration
}

func NewRedisCache(client *redis.Client, staleGrace time.Duration) *RedisCache {
	if staleGrace <= 0 {
		staleGrace = time.Hour
	}
	return &RedisCache{client: client, staleGrace: staleGrace}
}

func (c *RedisCache) Get(ctx context.Context, key string, out any) bool {
	log := obslog.New("cache.redis")
	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	raw, err := c.client.Get(cacheCtx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Debug().Err(err).Str("key", key).Msg("redis get error, treating as miss")
		}
		return false
	}
	if err := unmarshal(raw, out); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false
	}
	return true
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	log := obslog.New("cache.redis")
	data, err := marshal(value)
	if err != nil {
		return err
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	if err := c.client.Set(cacheCtx, key, data, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to set cache entry")
		return err
	}

	if ttl > 0 {
		shadowTTL := ttl + c.staleGrace
		if err := c.client.Set(cacheCtx, key+staleShadowSuffix, data, shadowTTL).Err(); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("failed to set stale shadow entry")
		}
	}
	return nil
}

func (c *RedisCache) GetWithExpiryStatus(ctx context.Context, key string, out any) (hit bool, expired bool) {
	if c.Get(ctx, key, out) {
		return true, false
	}

	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	raw, err := c.client.Get(cacheCtx, key+staleShadowSuffix).Bytes()
	if err != nil {
		return false, false
	}
	if err := unmarshal(raw, out); err != nil {
		return false, false
	}
	return true, true
}

func (c *RedisCache) Clear(ctx context.Context) error {
	log := obslog.New("cache.redis")
	iter := c.client.Scan(ctx, 0, "*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Msg("failed to clear cache")
		return err
	}
	return nil
}
