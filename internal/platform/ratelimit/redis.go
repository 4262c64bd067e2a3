package ratelimit

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/cineswipe/cineswipe/internal/domain"
)

// Redis implements the same fixed-window semantics on a shared Redis
// instance, for deployments running more than one API replica. Window
// expiry rides on key TTLs, so no sweep is needed.
type Redis struct {
	client    *redis.Client
	buckets   map[string]Bucket
	keyPrefix string
}

func NewRedis(client *redis.Client, buckets map[string]Bucket, prefix string) *Redis {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &Redis{
		client:    client,
		buckets:   buckets,
		keyPrefix: prefix,
	}
}

func (r *Redis) Admit(ctx context.Context, identity, bucket string) error {
	cfg, ok := r.buckets[bucket]
	if !ok || r.client == nil || cfg.Max <= 0 || cfg.Window <= 0 {
		return nil
	}

	key := r.buildKey(identity, bucket)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("ratelimit: incr failed: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, cfg.Window).Err(); err != nil {
			return fmt.Errorf("ratelimit: expire failed: %w", err)
		}
	}

	if int(count) > cfg.Max {
		ttl, err := r.client.TTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			ttl = cfg.Window
		}
		return &LimitError{RetryAfter: retryAfterSeconds(ttl)}
	}

	return nil
}

func (r *Redis) buildKey(identity, bucket string) string {
	// SHA-1 keeps raw caller identity (usually an IP) out of Redis keys.
	hash := sha1.Sum([]byte(identity))
	return fmt.Sprintf("%s:%s:%s", r.keyPrefix, bucket, hex.EncodeToString(hash[:]))
}

var _ domain.Admission = (*Redis)(nil)
