package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"citegraph/internal/util"

	"github.com/redis/go-redis/v9"
)

// Cache stores successful insights. Only StatusOK results are written.
type Cache interface {
	Get(ctx context.Context, key string) (Insight, bool, error)
	Set(ctx context.Context, key string, in Insight, ttl time.Duration) error
}

// CacheKey addresses an insight by model and the exact prompt it was generated
// from. Re-ingestion, backfilled citations or new chunks change the prompt and
// therefore the key.
func CacheKey(model, prompt string) string {
	return "citegraph:insight:" + util.HashKey(model, prompt)
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(ctx context.Context, url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (Insight, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Insight{}, false, nil
	}
	if err != nil {
		return Insight{}, false, err
	}
	var in Insight
	if err := json.Unmarshal(raw, &in); err != nil {
		return Insight{}, false, fmt.Errorf("decoding cached insight: %w", err)
	}
	return in, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, in Insight, ttl time.Duration) error {
	if in.Status != StatusOK {
		return nil
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, ttl).Err()
}

func (c *RedisCache) Close() error { return c.client.Close() }
