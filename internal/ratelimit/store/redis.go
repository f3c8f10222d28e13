package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"civicid/internal/ratelimit/models"
)

const keyPrefix = "civicid:ratelimit:"

// Redis keeps one sorted set per key, scored by request time, so every
// replica sees the same window.
type Redis struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client, now: time.Now}
}

// Allow trims the window, counts it and records the request in one
// MULTI/EXEC. A denied request is removed again so it does not consume budget.
func (s *Redis) Allow(ctx context.Context, key string, limit models.Limit) (models.Result, error) {
	now := s.now()
	k := keyPrefix + key
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()
	cutoff := strconv.FormatInt(now.Add(-limit.Window).UnixMicro(), 10)

	var count *redis.IntCmd
	var oldest *redis.ZSliceCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, k, "-inf", cutoff)
		p.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMicro()), Member: member})
		count = p.ZCard(ctx, k)
		oldest = p.ZRangeWithScores(ctx, k, 0, 0)
		p.PExpire(ctx, k, limit.Window)
		return nil
	})
	if err != nil {
		return models.Result{}, fmt.Errorf("rate limit %s: %w", key, err)
	}

	resetAt := now.Add(limit.Window)
	if zs := oldest.Val(); len(zs) > 0 {
		resetAt = time.UnixMicro(int64(zs[0].Score)).Add(limit.Window)
	}
	n := int(count.Val())
	if n > limit.Requests {
		if err := s.client.ZRem(ctx, k, member).Err(); err != nil {
			return models.Result{}, fmt.Errorf("rate limit %s: %w", key, err)
		}
		return models.Result{Limit: limit.Requests, ResetAt: resetAt}, nil
	}
	return models.Result{
		Allowed:   true,
		Limit:     limit.Requests,
		Remaining: limit.Requests - n,
		ResetAt:   resetAt,
	}, nil
}
