package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Decision 一次限流判断的结果
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter 按 key 计数的配额
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// MemoryLimiter 进程内滑动窗口
type MemoryLimiter struct {
	window *Window
}

// NewMemoryLimiter 创建进程内限流器
func NewMemoryLimiter(limit int, span time.Duration) *MemoryLimiter {
	return &MemoryLimiter{window: NewWindow(limit, span)}
}

// Allow 实现 Limiter
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	ok, remaining, wait := l.window.Allow(key)
	return Decision{Allowed: ok, Remaining: remaining, RetryAfter: wait}, nil
}

// Sweep 清理过期 key
func (l *MemoryLimiter) Sweep() int {
	return l.window.Sweep()
}

// slidingScript 在 Redis 中原子地维护有序集合窗口
// 返回 {allowed, remaining, retryAfterMs}
var slidingScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, now, member)
  redis.call('PEXPIRE', key, window)
  return {1, limit - count - 1, 0}
end
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local retry = window
if oldest[2] then
  retry = window - (now - tonumber(oldest[2]))
end
return {0, 0, retry}
`)

// RedisLimiter 多实例共享的滑动窗口
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	span   time.Duration
	now    func() time.Time

	mu  sync.Mutex
	seq uint64
}

// NewRedisLimiter 创建 Redis 限流器，prefix 区分不同路由的配额
func NewRedisLimiter(client *redis.Client, prefix string, limit int, span time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		span:   span,
		now:    time.Now,
	}
}

// Allow 实现 Limiter
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now().UnixMilli()

	l.mu.Lock()
	l.seq++
	member := fmt.Sprintf("%d-%d", now, l.seq)
	l.mu.Unlock()

	res, err := slidingScript.Run(ctx, l.client,
		[]string{fmt.Sprintf("ratelimit:%s:%s", l.prefix, key)},
		now, l.span.Milliseconds(), l.limit, member,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}

	d := Decision{Allowed: res[0] == 1, Remaining: int(res[1])}
	if !d.Allowed {
		d.RetryAfter = time.Duration(res[2]) * time.Millisecond
		if d.RetryAfter < time.Second {
			d.RetryAfter = time.Second
		}
	}
	return d, nil
}

// New 有 Redis 客户端时用 Redis，否则退回进程内窗口
func New(client *redis.Client, prefix string, limit int, span time.Duration) Limiter {
	if client != nil {
		return NewRedisLimiter(client, prefix, limit, span)
	}
	return NewMemoryLimiter(limit, span)
}
