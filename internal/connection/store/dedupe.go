package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

const dedupeKeyPrefix = "civicid:webhook:seen:"

// RedisDeduper remembers webhook messages it has seen for a TTL. It is a fast
// path only; the state machine stays idempotent without it.
type RedisDeduper struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisDeduper(client redis.Cmdable, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

// Claim marks raw as seen. It returns false if raw was already claimed.
func (d *RedisDeduper) Claim(ctx context.Context, raw []byte) (bool, error) {
	ok, err := d.client.SetNX(ctx, dedupeKey(raw), 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim webhook message: %w", err)
	}
	return ok, nil
}

// Release forgets raw so a redelivery is processed again.
func (d *RedisDeduper) Release(ctx context.Context, raw []byte) error {
	if err := d.client.Del(ctx, dedupeKey(raw)).Err(); err != nil {
		return fmt.Errorf("release webhook message: %w", err)
	}
	return nil
}

func dedupeKey(raw []byte) string {
	sum := blake2b.Sum256(raw)
	return dedupeKeyPrefix + hex.EncodeToString(sum[:])
}
