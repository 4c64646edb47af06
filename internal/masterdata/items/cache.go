package items

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a read-through cache of items by ID. Every Invalidate bumps the
// item's generation; Set only stores a row read under the current one.
type Cache interface {
	Get(ctx context.Context, id int64) (Item, bool, error)
	Generation(ctx context.Context, id int64) (int64, error)
	Set(ctx context.Context, item Item, generation int64) error
	Invalidate(ctx context.Context, id int64) error
}

const generationTTL = 24 * time.Hour

// RedisCache stores JSON encoded items in Redis.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCache constructs a RedisCache. A zero ttl defaults to five minutes.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Both keys of an item share a hash slot so Set can watch one and write the
// other on a cluster.
func cacheKey(id int64) string {
	return fmt.Sprintf("procurehub:item:{%d}", id)
}

func generationKey(id int64) string {
	return fmt.Sprintf("procurehub:item:{%d}:gen", id)
}

// Get returns the cached item; ok is false on a miss.
func (c *RedisCache) Get(ctx context.Context, id int64) (Item, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, err
	}
	var item Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return Item{}, false, err
	}
	return item, true, nil
}

// Generation returns the invalidation counter of id, zero if never bumped.
func (c *RedisCache) Generation(ctx context.Context, id int64) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Set stores item unless id was invalidated after generation was read.
func (c *RedisCache) Set(ctx context.Context, item Item, generation int64) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return err
	}
	genKey := generationKey(item.ID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(item.ID), raw, c.ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// Invalidate drops the cached copy of id and bumps its generation.
func (c *RedisCache) Invalidate(ctx context.Context, id int64) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(id))
		pipe.Expire(ctx, generationKey(id), generationTTL)
		pipe.Del(ctx, cacheKey(id))
		return nil
	})
	return err
}

var _ Cache = (*RedisCache)(nil)
