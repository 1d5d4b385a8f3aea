package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ashwinyue/persona-hub/internal/config"
	"github.com/ashwinyue/persona-hub/internal/database"
	"github.com/ashwinyue/persona-hub/internal/handler"
	applog "github.com/ashwinyue/persona-hub/internal/logger"
	"github.com/ashwinyue/persona-hub/internal/repository"
	"github.com/ashwinyue/persona-hub/internal/router"
	"github.com/ashwinyue/persona-hub/internal/scheduler"
	"github.com/ashwinyue/persona-hub/internal/service"
)

func main() {
	// .env 可选
	_ = godotenv.Load()

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := applog.New(&cfg.App)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
	logger.Info("server exited")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// 设置 Gin 模式
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 文档存储
	store, err := database.Open(cfg.Storage.DataDir, logger)
	if err != nil {
		return err
	}
	logger.Info("data store opened", zap.String("dir", store.Dir()))

	// Redis 只用于共享全局限流
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}

	// 初始化各层
	repos := repository.NewRepositories(store)
	services, err := service.NewServices(ctx, repos, cfg, redisClient, logger)
	if err != nil {
		return err
	}
	if err := handler.RegisterValidators(); err != nil {
		return err
	}
	handlers := handler.NewHandlers(services)
	r := router.SetupRouter(services, handlers, logger)

	// 定时任务
	sched, err := scheduler.New(logger)
	if err != nil {
		return err
	}
	for _, job := range scheduler.DefaultJobs(cfg, services.Tag, store, services.Limiters, services.Stats, logger) {
		if err := sched.Add(ctx, job); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		logger.Info("shutting down")

		// 优雅关闭
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), sched.Shutdown(), services.Stats.Flush(shutdownCtx))
	})
	return g.Wait()
}
