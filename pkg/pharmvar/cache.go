package pharmvar

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores raw PharmVar API responses in Redis so repeated table
// builds do not hammer the upstream service.
type Cache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewCache creates a Redis-backed response cache.
func NewCache(redisURL string, defaultTTL time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if defaultTTL == 0 {
		defaultTTL = 24 * time.Hour
	}

	return &Cache{
		redis:      client,
		defaultTTL: defaultTTL,
	}, nil
}

// Get returns the cached response body for an API path.
func (c *Cache) Get(ctx context.Context, path string) ([]byte, bool, error) {
	val, err := c.redis.Get(ctx, cacheKey(path)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached response: %w", err)
	}
	return val, true, nil
}

// Set caches a response body for an API path.
func (c *Cache) Set(ctx context.Context, path string, body []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	return c.redis.Set(ctx, cacheKey(path), body, ttl).Err()
}

// Invalidate removes the cached response for an API path.
func (c *Cache) Invalidate(ctx context.Context, path string) error {
	return c.redis.Del(ctx, cacheKey(path)).Err()
}

// Ping checks if the Redis connection is alive.
func (c *Cache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.redis.Close()
}

func cacheKey(path string) string {
	hash := sha256.Sum256([]byte(path))
	return fmt.Sprintf("pharmvar:response:%x", hash[:8])
}
