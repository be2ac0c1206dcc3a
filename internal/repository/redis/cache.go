package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache is a read-through JSON cache for configuration that rarely changes,
// such as event types.
type Cache struct {
	rdb *redis.Client
	sf  singleflight.Group
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{rdb: client}
}

func getJSON[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	var out T

	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}

	if err := json.Unmarshal(b, &out); err != nil {
		return out, false, err
	}
	return out, true, nil
}

// GetOrSetJSON reads key, loading and storing it on a miss. Concurrent misses
// share one loader call, which outlives the cancellation of the caller that
// started it. Redis errors degrade to calling the loader.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	var zero T

	if v, ok, err := getJSON[T](ctx, c, key); err == nil && ok {
		return v, nil
	}

	ch := c.sf.DoChan(key, func() (any, error) {
		sctx := context.WithoutCancel(ctx)

		if v, ok, err := getJSON[T](sctx, c, key); err == nil && ok {
			return v, nil
		}

		v, err := loader(sctx)
		if err != nil {
			return nil, err
		}

		if b, err := json.Marshal(v); err == nil {
			// a failed write only costs the next reader a reload
			_ = c.rdb.Set(sctx, key, b, ttl).Err()
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("cache: unexpected %T for key %s", res.Val, key)
		}
		return v, nil
	}
}

func (c *Cache) InvalidateEventType(ctx context.Context, eventTypeID int64) error {
	return c.rdb.Del(ctx, KeyEventType(eventTypeID)).Err()
}
