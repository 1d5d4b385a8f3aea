// Package scheduler 后台定时任务：标签重建、数据备份、限流器清理
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/ashwinyue/persona-hub/internal/config"
	applog "github.com/ashwinyue/persona-hub/internal/logger"
)

// Job 一个定时任务
type Job struct {
	Name string
	Cron string
	Run  func(ctx context.Context) error
}

// Scheduler 包装 gocron，每个任务的错误和 panic 只记日志
type Scheduler struct {
	s      gocron.Scheduler
	logger *zap.Logger
}

// New 创建调度器，任务按 UTC 时间触发
func New(logger *zap.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(applog.NewGocronLogger(logger.Named("gocron"))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{s: s, logger: logger}, nil
}

// Add 注册任务；同一任务不会并发执行
func (sc *Scheduler) Add(ctx context.Context, job Job) error {
	_, err := sc.s.NewJob(
		gocron.CronJob(job.Cron, false),
		gocron.NewTask(func() { sc.run(ctx, job) }),
		gocron.WithName(job.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule job %q: %w", job.Name, err)
	}
	sc.logger.Info("job scheduled", zap.String("name", job.Name), zap.String("cron", job.Cron))
	return nil
}

// Start 开始调度
func (sc *Scheduler) Start() {
	sc.s.Start()
}

// Shutdown 停止调度并等待正在运行的任务
func (sc *Scheduler) Shutdown() error {
	if err := sc.s.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown scheduler: %w", err)
	}
	return nil
}

// run 执行一次任务，panic 被恢复，下个周期照常运行
func (sc *Scheduler) run(ctx context.Context, job Job) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			sc.logger.Error("job panicked",
				zap.String("name", job.Name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()

	if err := job.Run(ctx); err != nil {
		sc.logger.Error("job failed", zap.String("name", job.Name), zap.Error(err))
		return
	}
	sc.logger.Debug("job finished", zap.String("name", job.Name), zap.Duration("elapsed", time.Since(start)))
}

// Sweeper 可清理过期状态的组件
type Sweeper interface {
	Sweep() int
}

// Reindexer 可重建索引的组件
type Reindexer interface {
	Reindex(ctx context.Context) error
}

// Backuper 可备份数据的组件
type Backuper interface {
	Backup(dir string) error
}

// Flusher 把内存计数写盘的组件
type Flusher interface {
	Flush(ctx context.Context) error
}

// DefaultJobs 按配置生成标准任务集合
func DefaultJobs(cfg *config.Config, tags Reindexer, store Backuper, limiters Sweeper, stats Flusher, logger *zap.Logger) []Job {
	return []Job{
		{
			Name: "tag-reindex",
			Cron: cfg.Scheduler.TagReindex,
			Run:  tags.Reindex,
		},
		{
			Name: "backup",
			Cron: cfg.Scheduler.Backup,
			Run: func(context.Context) error {
				return store.Backup(cfg.Storage.BackupDir)
			},
		},
		{
			Name: "limiter-sweep",
			Cron: cfg.Scheduler.Sweep,
			Run: func(context.Context) error {
				if n := limiters.Sweep(); n > 0 {
					logger.Debug("swept limiter keys", zap.Int("removed", n))
				}
				return nil
			},
		},
		{
			Name: "stats-flush",
			Cron: cfg.Scheduler.StatsFlush,
			Run:  stats.Flush,
		},
	}
}
