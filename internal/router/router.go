package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ashwinyue/persona-hub/internal/handler"
	"github.com/ashwinyue/persona-hub/internal/middleware"
	"github.com/ashwinyue/persona-hub/internal/service"
	"github.com/ashwinyue/persona-hub/internal/service/ratelimit"
)

// SetupRouter 设置路由
func SetupRouter(svc *service.Services, h *handler.Handlers, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))

	// 本地存储时由本服务提供头像文件
	if fc := svc.Config.File; fc.Type == "local" {
		r.Static(fc.URLPrefix, fc.LocalPath)
	}

	limits := svc.Limiters
	optional := middleware.Auth(svc.Auth)
	required := middleware.RequireAuth(svc.Auth)
	quota := func(l ratelimit.Limiter) gin.HandlerFunc {
		return middleware.RateLimit(l, logger)
	}

	api := r.Group("/api")
	api.Use(middleware.StatsTracking(svc.Stats, logger))
	api.Use(quota(limits.Global))
	{
		// 系统
		api.GET("/health", h.System.Health)
		api.GET("/stats", h.System.Stats)

		// 认证
		api.POST("/register", quota(limits.Register), h.Auth.Register)
		api.POST("/login", quota(limits.Login), h.Auth.Login)

		// 标签
		api.GET("/tags", optional, h.Tag.List)

		// Bot
		bots := api.Group("/bots")
		{
			bots.GET("", optional, h.Bot.List)
			bots.POST("", required, h.Bot.Create)
			bots.GET("/id/:encodedId", optional, h.Bot.GetEncoded)
			bots.GET("/:id", optional, h.Bot.Get)
			bots.PUT("/:id", required, h.Bot.Update)
			bots.DELETE("/:id", required, h.Bot.Delete)
			bots.POST("/:id/view", optional, h.Bot.View)
			bots.POST("/:id/complete", required, h.Completion.Complete)
		}
		api.POST("/upload-bot", required, h.Bot.Create)
		api.POST("/log-bot-use", required, quota(limits.BotUse), h.Bot.LogUse)
		api.GET("/recent-bots", required, h.Bot.Recent)

		// 会话
		chats := api.Group("/chats", required)
		{
			chats.GET("", h.Chat.List)
			chats.POST("", h.Chat.Upsert)
			chats.GET("/:id", h.Chat.Get)
			chats.DELETE("/:id", h.Chat.Delete)
		}

		// 用户资料
		api.GET("/profile/:profile", optional, h.Profile.Get)
		api.PUT("/profile/update", required, h.Profile.Update)
		api.DELETE("/account", quota(limits.DeleteAccount), required, h.Profile.DeleteAccount)
		api.DELETE("/delete-account", quota(limits.DeleteAccount), required, h.Profile.DeleteAccount)

		// 生成与审核
		api.POST("/create-message", required, h.Completion.CreateMessage)
		api.POST("/check-nsfw", h.Moderation.CheckNSFW)
	}

	return r
}
