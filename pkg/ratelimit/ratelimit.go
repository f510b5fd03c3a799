// Package ratelimit 提供基于 Redis 的分布式限流
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RateLimiter 限流器接口
type RateLimiter interface {
	// Allow 检查 key 在给定规则下是否允许请求
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

// Limit 限流规则
type Limit struct {
	Rate   int
	Period time.Duration
	Burst  int
}

// 手动刷新接口的默认规则：每分钟 5 次
const (
	DefaultRefreshRate   = 5
	DefaultRefreshPeriod = time.Minute
)

// NewLimit 构建限流规则，未配置的字段使用手动刷新的默认值，Burst 缺省等于 Rate
func NewLimit(rate, burst int, period time.Duration) Limit {
	if rate <= 0 {
		rate = DefaultRefreshRate
	}
	if period <= 0 {
		period = DefaultRefreshPeriod
	}
	if burst <= 0 {
		burst = rate
	}
	return Limit{Rate: rate, Period: period, Burst: burst}
}

// Key 限流计数键，按作用域与调用方（通常是客户端 IP）区分
func Key(scope, subject string) string {
	if scope == "" {
		scope = "default"
	}
	return fmt.Sprintf("ratelimit:%s:%s", scope, subject)
}

// Result 限流检查结果
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAfter time.Duration
	RetryAfter time.Duration
}

// RedisRateLimiter 基于 redis_rate (GCRA) 的实现
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
}

// NewRedisRateLimiter 创建 RedisRateLimiter
func NewRedisRateLimiter(rdb *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(rdb),
	}
}

// Allow 检查是否允许请求
func (r *RedisRateLimiter) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	res, err := r.limiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit.Rate,
		Period: limit.Period,
		Burst:  limit.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		ResetAfter: res.ResetAfter,
		RetryAfter: res.RetryAfter,
	}, nil
}
