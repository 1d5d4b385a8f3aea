// Package logger 构建全局共享的 zap 日志器
package logger

import (
	"fmt"

	"github.com/ashwinyue/persona-hub/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New 根据配置创建日志器
// debug 模式使用开发格式，其余使用 JSON 生产格式
func New(cfg *config.AppConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Debug {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
	}

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return l.With(
		zap.String("app", cfg.Name),
		zap.String("env", cfg.Environment),
	), nil
}
