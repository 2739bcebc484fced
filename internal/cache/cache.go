// Package cache provides Redis-backed caching for hot read paths.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// snapshotKey is where the latest health snapshot is cached so API replicas
// can serve reads without running their own probe cycle.
const snapshotKey = "health:snapshot"

// snapshotTTL bounds how stale a cached snapshot may get if the writer dies.
const snapshotTTL = 2 * time.Minute

// Client wraps a Redis client with JSON helpers.
type Client struct {
	*redis.Client
}

// NewClient connects to Redis. Accepts a redis:// URL or a bare host:port
// address.
func NewClient(redisURL string) *Client {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{
			Addr: redisURL,
		}
	}

	return &Client{redis.NewClient(opt)}
}

// SetJSON marshals value and stores it under key with the given expiration.
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.Set(ctx, key, data, expiration).Err()
}

// GetJSON loads the value stored under key into dest. Returns redis.Nil when
// the key does not exist.
func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := c.Get(ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(data), dest)
}

// CacheHealthSnapshot stores the latest health snapshot.
func (c *Client) CacheHealthSnapshot(ctx context.Context, snapshot interface{}) error {
	return c.SetJSON(ctx, snapshotKey, snapshot, snapshotTTL)
}

// GetCachedHealthSnapshot loads the latest cached health snapshot into dest.
func (c *Client) GetCachedHealthSnapshot(ctx context.Context, dest interface{}) error {
	return c.GetJSON(ctx, snapshotKey, dest)
}
