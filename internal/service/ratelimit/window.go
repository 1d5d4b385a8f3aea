// Package ratelimit 按 key（通常是客户端 IP）的滑动窗口计数
// 状态只在内存中，进程重启即清空
package ratelimit

import (
	"sync"
	"time"
)

// Window 滑动窗口日志：每个 key 保存窗口内的命中时间
type Window struct {
	mu    sync.Mutex
	limit int
	span  time.Duration
	hits  map[string][]time.Time
	now   func() time.Time
}

// NewWindow 创建滑动窗口
func NewWindow(limit int, span time.Duration) *Window {
	return &Window{
		limit: limit,
		span:  span,
		hits:  make(map[string][]time.Time),
		now:   time.Now,
	}
}

// Allow 未达上限则记录一次命中并放行；否则返回还需等待多久
func (w *Window) Allow(key string) (bool, int, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	recent := w.prune(key, now)
	if len(recent) >= w.limit {
		return false, 0, w.retryAfter(recent, now)
	}
	w.hits[key] = append(recent, now)
	return true, w.limit - len(recent) - 1, 0
}

// Record 无条件记录一次命中
func (w *Window) Record(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.hits[key] = append(w.prune(key, now), now)
}

// Blocked 窗口内命中数是否已达上限
func (w *Window) Blocked(key string) (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	recent := w.prune(key, now)
	if len(recent) >= w.limit {
		return true, w.retryAfter(recent, now)
	}
	return false, 0
}

// Reset 清除 key 的全部记录
func (w *Window) Reset(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.hits, key)
}

// Sweep 删除窗口内已无命中的 key，返回删除数量
func (w *Window) Sweep() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	removed := 0
	for key := range w.hits {
		if len(w.prune(key, now)) == 0 {
			delete(w.hits, key)
			removed++
		}
	}
	return removed
}

// Len 当前跟踪的 key 数
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.hits)
}

// prune 丢弃窗口外的命中；调用方持有锁
func (w *Window) prune(key string, now time.Time) []time.Time {
	hits := w.hits[key]
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == len(hits) {
		if hits != nil {
			w.hits[key] = hits[:0]
		}
		return hits[:0]
	}
	recent := hits[i:]
	w.hits[key] = recent
	return recent
}

// retryAfter 最早一次命中移出窗口的剩余时间
func (w *Window) retryAfter(recent []time.Time, now time.Time) time.Duration {
	wait := recent[0].Add(w.span).Sub(now)
	if wait < time.Second {
		wait = time.Second
	}
	return wait
}
