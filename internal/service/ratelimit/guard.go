package ratelimit

import (
	"time"

	"github.com/ashwinyue/persona-hub/internal/service/types"
)

// AuthGuard 记录认证失败次数，超过阈值后在窗口内拒绝该客户端
type AuthGuard struct {
	window *Window
}

// NewAuthGuard 创建认证失败计数器
func NewAuthGuard(threshold int, span time.Duration) *AuthGuard {
	return &AuthGuard{window: NewWindow(threshold, span)}
}

// Check 客户端是否已被临时封禁
func (g *AuthGuard) Check(key string) error {
	if blocked, wait := g.window.Blocked(key); blocked {
		return types.RateLimited("Too many failed authentication attempts. Try again later.", wait)
	}
	return nil
}

// Fail 记录一次失败
func (g *AuthGuard) Fail(key string) {
	g.window.Record(key)
}

// Succeed 认证成功后清零
func (g *AuthGuard) Succeed(key string) {
	g.window.Reset(key)
}

// Sweep 清理过期 key
func (g *AuthGuard) Sweep() int {
	return g.window.Sweep()
}
