package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// counterTTL keeps yesterday's key around for requests that straddle midnight.
const counterTTL = 48 * time.Hour

// RedisCounter shares daily counters across service instances.
type RedisCounter struct {
	client redis.Cmdable
	prefix string
}

func NewRedisCounter(client redis.Cmdable, keyPrefix string) *RedisCounter {
	if keyPrefix == "" {
		keyPrefix = "ledger:regno"
	}
	return &RedisCounter{client: client, prefix: keyPrefix}
}

func (c *RedisCounter) key(day string) string {
	return c.prefix + ":" + day
}

func (c *RedisCounter) Next(ctx context.Context, day string) (int64, error) {
	key := c.key(day)
	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, counterTTL)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

// NewRedisClient parses url (redis://...) and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
