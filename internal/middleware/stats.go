package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Tracker 记录请求统计
type Tracker interface {
	Track(ctx context.Context, userID string) error
}

// StatsTracking 每个请求计数一次，失败只记日志
func StatsTracking(t Tracker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := t.Track(context.WithoutCancel(c.Request.Context()), c.GetHeader(HeaderUserID)); err != nil {
			logger.Warn("failed to track request", zap.Error(err))
		}
		c.Next()
	}
}
