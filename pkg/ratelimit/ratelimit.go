// Package ratelimit 提供基于 Redis 的分布式限流
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix 限流键统一前缀，多个实例共享同一组令牌
const DefaultPrefix = "ecommerce:ratelimit:"

// RateLimiter 限流器接口
type RateLimiter interface {
	// Allow 检查 key 在 limit 下是否放行
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

// Limit 限流规则
type Limit struct {
	Rate   int
	Period time.Duration
	Burst  int
}

// PerSecond 每秒 rate 次，突发上限 burst；burst 未配置时取 rate
func PerSecond(rate, burst int) Limit {
	if burst <= 0 {
		burst = rate
	}
	return Limit{Rate: rate, Period: time.Second, Burst: burst}
}

// IsZero 未配置的规则不做限流
func (l Limit) IsZero() bool {
	return l.Rate <= 0 || l.Period <= 0
}

// Result 限流结果
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAfter time.Duration
	RetryAfter time.Duration
}

// RedisRateLimiter GCRA 令牌桶，状态保存在 Redis
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
	prefix  string
}

// NewRedisRateLimiter 创建 Redis 限流器，prefix 为空时使用 DefaultPrefix
func NewRedisRateLimiter(rdb *redis.Client, prefix string) *RedisRateLimiter {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisRateLimiter{limiter: redis_rate.NewLimiter(rdb), prefix: prefix}
}

func (r *RedisRateLimiter) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	if limit.IsZero() {
		return &Result{Allowed: true, Remaining: -1}, nil
	}
	res, err := r.limiter.Allow(ctx, r.prefix+key, redis_rate.Limit{
		Rate:   limit.Rate,
		Period: limit.Period,
		Burst:  limit.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return &Result{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		ResetAfter: res.ResetAfter,
		RetryAfter: res.RetryAfter,
	}, nil
}

// Reset 清空 key 的令牌桶状态
func (r *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	return r.limiter.Reset(ctx, r.prefix+key)
}
