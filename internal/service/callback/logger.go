// Package callback 把 Eino 组件的执行事件写入 zap 日志
package callback

import (
	"context"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

type startKey struct{}

// Logger 日志回调处理器，实现 callbacks.Handler
type Logger struct {
	logger *zap.Logger
}

// NewLogger 创建日志回调处理器
func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger.Named("eino")}
}

// Attach 为一次模型调用初始化回调，name 通常是服务商名称
func (l *Logger) Attach(ctx context.Context, name string) context.Context {
	return callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      name,
		Type:      "persona-chat",
		Component: components.ComponentOfChatModel,
	}, l)
}

// OnStart 记录开始时间和输入规模
func (l *Logger) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	fields := l.fields(info)
	if in := einomodel.ConvCallbackInput(input); in != nil {
		fields = append(fields, zap.Int("messages", len(in.Messages)))
	}
	l.logger.Debug("model call started", fields...)
	return context.WithValue(ctx, startKey{}, time.Now())
}

// OnEnd 记录耗时和 token 用量
func (l *Logger) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	fields := append(l.fields(info), elapsed(ctx))
	if out := einomodel.ConvCallbackOutput(output); out != nil && out.TokenUsage != nil {
		fields = append(fields,
			zap.Int("prompt_tokens", out.TokenUsage.PromptTokens),
			zap.Int("completion_tokens", out.TokenUsage.CompletionTokens),
		)
	}
	l.logger.Info("model call finished", fields...)
	return ctx
}

// OnError 记录失败
func (l *Logger) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	l.logger.Warn("model call failed", append(l.fields(info), elapsed(ctx), zap.Error(err))...)
	return ctx
}

// OnStartWithStreamInput 聊天模型没有流式输入，只需关闭副本
func (l *Logger) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo, input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return context.WithValue(ctx, startKey{}, time.Now())
}

// OnEndWithStreamOutput 流的副本必须读完并关闭
func (l *Logger) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo, output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	fields := append(l.fields(info), elapsed(ctx))
	go func() {
		defer output.Close()
		chunks := 0
		for {
			if _, err := output.Recv(); err != nil {
				break
			}
			chunks++
		}
		l.logger.Info("model stream finished", append(fields, zap.Int("chunks", chunks))...)
	}()
	return ctx
}

func (l *Logger) fields(info *callbacks.RunInfo) []zap.Field {
	if info == nil {
		return nil
	}
	return []zap.Field{zap.String("name", info.Name), zap.String("component", string(info.Component))}
}

func elapsed(ctx context.Context) zap.Field {
	if start, ok := ctx.Value(startKey{}).(time.Time); ok {
		return zap.Duration("elapsed", time.Since(start))
	}
	return zap.Skip()
}
