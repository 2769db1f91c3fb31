package api

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// hourlyRateKey 拼接按小时滚动的限流计数键，
// 例如 rate:login:1.2.3.4:alice:2025082810。
func hourlyRateKey(parts ...string) string {
	window := time.Now().UTC().Format("2006010215")
	return strings.Join(parts, ":") + ":" + window
}

// incrWithTTL 自增计数键，并在首次创建时设置过期时间。
// 计数键按小时滚动，见 hourlyRateKey。
func incrWithTTL(ctx context.Context, client redisRateCounter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}
