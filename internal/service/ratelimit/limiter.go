// Package ratelimit 提供模型调用的按用户限流
// 计数保存在 Redis，进程内不持有任何状态，水平扩展下所有实例共享窗口
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:model:"

// Limiter 固定窗口限流器
type Limiter struct {
	redis   *redis.Client
	limit   int
	window  time.Duration
	enabled bool
}

// NewLimiter 创建限流器
// perMinute <= 0 或 redisClient 为 nil 时限流关闭
func NewLimiter(redisClient *redis.Client, perMinute int, enabled bool) *Limiter {
	return &Limiter{
		redis:   redisClient,
		limit:   perMinute,
		window:  time.Minute,
		enabled: enabled && perMinute > 0 && redisClient != nil,
	}
}

// Allow 报告 ownerID 在当前窗口内是否还可以发起模型调用
// Redis 不可用时放行，限流是保护而不是单点
func (l *Limiter) Allow(ctx context.Context, ownerID string) (bool, error) {
	if !l.enabled {
		return true, nil
	}

	bucket := time.Now().Unix() / int64(l.window.Seconds())
	key := fmt.Sprintf("%s%s:%d", keyPrefix, ownerID, bucket)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return true, fmt.Errorf("rate limit check failed: %w", err)
	}
	if count == 1 {
		l.redis.Expire(ctx, key, l.window)
	}

	return count <= int64(l.limit), nil
}
