// Package cache is the Redis-backed result cache. Repeating an upload of
// the same image with the same instructions returns the stored reply without
// a model call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/licenselens/licenselens-backend/pkg/config"
)

const keyPrefix = "licenselens:analysis:"

// Key derives the cache key for a normalized image and its instructions.
func Key(imageJPEG []byte, instructions string) string {
	h := sha256.New()
	h.Write(imageJPEG)
	h.Write([]byte{0})
	h.Write([]byte(instructions))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Redis is a concrete result cache backed by go-redis.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed result cache.
func NewRedis(cfg *config.RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Redis{client: client, ttl: cfg.TTL}
}

// Ping verifies the Redis connection.
func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (c *Redis) Close() error {
	return c.client.Close()
}

// Get retrieves a cached analysis text. A miss returns ("", nil).
func (c *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set stores an analysis text under the derived key.
func (c *Redis) Set(ctx context.Context, key string, value string) error {
	return c.client.Set(ctx, key, value, c.ttl).Err()
}
