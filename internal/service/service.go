package service

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ashwinyue/persona-hub/internal/config"
	"github.com/ashwinyue/persona-hub/internal/repository"
	"github.com/ashwinyue/persona-hub/internal/service/auth"
	"github.com/ashwinyue/persona-hub/internal/service/bot"
	"github.com/ashwinyue/persona-hub/internal/service/chat"
	"github.com/ashwinyue/persona-hub/internal/service/completion"
	"github.com/ashwinyue/persona-hub/internal/service/file"
	"github.com/ashwinyue/persona-hub/internal/service/image"
	"github.com/ashwinyue/persona-hub/internal/service/moderation"
	"github.com/ashwinyue/persona-hub/internal/service/profile"
	"github.com/ashwinyue/persona-hub/internal/service/ratelimit"
	"github.com/ashwinyue/persona-hub/internal/service/stats"
	"github.com/ashwinyue/persona-hub/internal/service/tag"
)

// Services 服务集合
type Services struct {
	Auth       *auth.Service
	Bot        *bot.Service
	Chat       *chat.Service
	Profile    *profile.Service
	Tag        *tag.Service
	Stats      *stats.Service
	Completion *completion.Service
	Moderation *moderation.Service
	Files      *file.Service

	Limiters *Limiters
	Repos    *repository.Repositories
	Config   *config.Config
}

// Limiters 各路由的配额
type Limiters struct {
	Global        ratelimit.Limiter
	Register      *ratelimit.MemoryLimiter
	Login         *ratelimit.MemoryLimiter
	BotUse        *ratelimit.MemoryLimiter
	DeleteAccount *ratelimit.MemoryLimiter
	AuthFailures  *ratelimit.AuthGuard
}

// NewLimiters 按配置创建限流器；redisClient 非空时全局配额走 Redis
func NewLimiters(cfg config.RateLimitConfig, redisClient *redis.Client) *Limiters {
	mem := func(q config.QuotaConfig) *ratelimit.MemoryLimiter {
		return ratelimit.NewMemoryLimiter(q.Max, q.Window)
	}
	return &Limiters{
		Global:        ratelimit.New(redisClient, "global", cfg.Global.Max, cfg.Global.Window),
		Register:      mem(cfg.Register),
		Login:         mem(cfg.Login),
		BotUse:        mem(cfg.BotUse),
		DeleteAccount: mem(cfg.DeleteAccount),
		AuthFailures:  ratelimit.NewAuthGuard(cfg.AuthFailures.Max, cfg.AuthFailures.Window),
	}
}

// Sweep 清理进程内限流器中的过期 key，返回删除数量
func (l *Limiters) Sweep() int {
	n := l.Register.Sweep() + l.Login.Sweep() + l.BotUse.Sweep() + l.DeleteAccount.Sweep() + l.AuthFailures.Sweep()
	if m, ok := l.Global.(*ratelimit.MemoryLimiter); ok {
		n += m.Sweep()
	}
	return n
}

// NewServices 创建所有服务
func NewServices(ctx context.Context, repo *repository.Repositories, cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) (*Services, error) {
	storage, err := file.NewStorageFromConfig(ctx, &cfg.File)
	if err != nil {
		return nil, fmt.Errorf("failed to create file storage: %w", err)
	}
	files := file.NewService(storage, logger.Named("file"))

	limiters := NewLimiters(cfg.RateLimit, redisClient)
	tags := tag.NewIndex()
	images := image.NewProcessor(cfg.Image)
	lore := completion.NewLoreFetcher(nil, cfg.Lore.Timeout, cfg.Lore.MaxBytes, logger.Named("lore"))

	s := &Services{
		Auth:       auth.NewService(repo, limiters.AuthFailures, logger.Named("auth")),
		Bot:        bot.NewService(repo, tags, files, images, logger.Named("bot")),
		Chat:       chat.NewService(repo, logger.Named("chat")),
		Profile:    profile.NewService(repo, tags, files, images, logger.Named("profile")),
		Tag:        tag.NewService(repo, tags, logger.Named("tag")),
		Stats:      stats.NewService(repo, logger.Named("stats")),
		Completion: completion.NewService(repo, &cfg.AI, completion.NewOpenAIFactory(&cfg.AI), lore, logger.Named("completion")),
		Moderation: moderation.NewService(cfg.Moderation, nil, logger.Named("moderation")),
		Files:      files,
		Limiters:   limiters,
		Repos:      repo,
		Config:     cfg,
	}

	// 启动时建一次索引，之后由定时任务刷新
	if err := s.Tag.Reindex(ctx); err != nil {
		logger.Warn("initial tag reindex failed", zap.Error(err))
	}
	return s, nil
}
