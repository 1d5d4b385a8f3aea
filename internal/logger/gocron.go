package logger

import (
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// gocronLogger 把 gocron 的键值日志转到 zap
type gocronLogger struct {
	s *zap.SugaredLogger
}

// NewGocronLogger 供 gocron.WithLogger 使用
//
//nolint:ireturn // gocron 要求返回接口
func NewGocronLogger(l *zap.Logger) gocron.Logger {
	return &gocronLogger{s: l.Sugar()}
}

func (g *gocronLogger) Debug(msg string, args ...any) { g.s.Debugw(msg, args...) }
func (g *gocronLogger) Info(msg string, args ...any)  { g.s.Infow(msg, args...) }
func (g *gocronLogger) Warn(msg string, args ...any)  { g.s.Warnw(msg, args...) }
func (g *gocronLogger) Error(msg string, args ...any) { g.s.Errorw(msg, args...) }
