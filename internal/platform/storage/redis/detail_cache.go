// Package redis implements the Redis-backed pieces: the provider detail
// cache and the shared client used by the admission limiter.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cineswipe/cineswipe/internal/domain"
)

// DetailCache stores normalized item detail payloads with a TTL, keeping
// repeat detail lookups off the external provider between refreshes.
type DetailCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewDetailCache(client *redis.Client, prefix string, ttl time.Duration) *DetailCache {
	if prefix == "" {
		prefix = "detail"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &DetailCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *DetailCache) Get(ctx context.Context, id domain.ContentID, t domain.ContentType) (domain.Content, bool, error) {
	raw, err := c.client.Get(ctx, c.key(id, t)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Content{}, false, nil
	}
	if err != nil {
		return domain.Content{}, false, fmt.Errorf("redis detail cache: get: %w", err)
	}

	var item domain.Content
	if err := json.Unmarshal(raw, &item); err != nil {
		// A corrupt entry behaves like a miss; the next Set overwrites it.
		return domain.Content{}, false, nil
	}
	return item, true, nil
}

func (c *DetailCache) Set(ctx context.Context, item domain.Content) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("redis detail cache: marshal: %w", err)
	}
	if err := c.client.Set(ctx, c.key(item.ID, item.Type), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis detail cache: set: %w", err)
	}
	return nil
}

func (c *DetailCache) key(id domain.ContentID, t domain.ContentType) string {
	return fmt.Sprintf("%s:%s:%d", c.prefix, t, id)
}

var _ domain.DetailCache = (*DetailCache)(nil)
