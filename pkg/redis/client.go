// Package redis wraps go-redis/v9 with the small surface the cache layer
// needs: get/set with TTL, deletes, and glob-pattern invalidation.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kavyarao/streamfilter/pkg/config"
	"github.com/redis/go-redis/v9"
)

// dialTimeout bounds the initial connectivity probe in NewClient.
const dialTimeout = 5 * time.Second

// scanBatch is the COUNT hint passed to SCAN during invalidation.
const scanBatch = 200

// Client wraps a pooled go-redis client.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to Redis and verifies the connection with a PING.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Get returns the string value stored at key. A missing key yields an
// error for which IsNilError reports true.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

// Set stores value at key with the given TTL.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Del deletes one or more keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// FlushByPattern deletes every key matching the glob pattern, returning
// the number removed. Keys are collected with SCAN and deleted in
// batches so the server is never blocked on one large KEYS call.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var deleted int64
	batch := make([]string, 0, scanBatch)

	iter := c.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
				return deleted, fmt.Errorf("deleting matched keys: %w", err)
			}
			deleted += int64(len(batch))
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scanning pattern %s: %w", pattern, err)
	}
	if len(batch) > 0 {
		if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
			return deleted, fmt.Errorf("deleting matched keys: %w", err)
		}
		deleted += int64(len(batch))
	}
	return deleted, nil
}

// IsNilError reports whether err is a Redis nil (key-not-found) reply.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Ping sends a PING to Redis and returns any error.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
