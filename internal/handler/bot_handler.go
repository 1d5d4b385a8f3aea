package handler

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/persona-hub/internal/middleware"
	"github.com/ashwinyue/persona-hub/internal/service"
	"github.com/ashwinyue/persona-hub/internal/service/bot"
)

// BotHandler bot 处理器
type BotHandler struct {
	svc *service.Services
}

// NewBotHandler 创建 bot 处理器
func NewBotHandler(svc *service.Services) *BotHandler {
	return &BotHandler{svc: svc}
}

// listQuery GET /bots 的查询参数
type listQuery struct {
	Offset int    `form:"offset" binding:"min=0"`
	Limit  int    `form:"limit" binding:"min=0"`
	Search string `form:"search"`
	Tags   string `form:"tags"`
	Sort   string `form:"sort"`
}

// List 列出可见的 bot
// GET /api/bots
func (h *BotHandler) List(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		Error(c, bindError(err))
		return
	}

	var tags []string
	if q.Tags != "" {
		tags = strings.Split(q.Tags, ",")
	}
	res, err := h.svc.Bot.List(c.Request.Context(), middleware.GetUserID(c), bot.ListQuery{
		Offset: q.Offset,
		Limit:  q.Limit,
		Search: q.Search,
		Tags:   tags,
		Sort:   q.Sort,
	})
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, res)
}

// Create 创建 bot
// POST /api/bots
func (h *BotHandler) Create(c *gin.Context) {
	var req bot.CreateBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, bindError(err))
		return
	}

	resp, err := h.svc.Bot.Create(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, resp)
}

// Get 获取 bot 详情
// GET /api/bots/:id
func (h *BotHandler) Get(c *gin.Context) {
	b, err := h.svc.Bot.Get(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, b)
}

// GetEncoded 解析编码后的 bot ID
// GET /api/bots/id/:encodedId
func (h *BotHandler) GetEncoded(c *gin.Context) {
	res, err := h.svc.Bot.ResolveEncoded(c.Request.Context(), middleware.GetUserID(c), c.Param("encodedId"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, res)
}

// Update 修改 bot
// PUT /api/bots/:id
func (h *BotHandler) Update(c *gin.Context) {
	var patch map[string]json.RawMessage
	if err := c.ShouldBindJSON(&patch); err != nil {
		Error(c, bindError(err))
		return
	}

	id := c.Param("id")
	if err := h.svc.Bot.Update(c.Request.Context(), middleware.GetUserID(c), id, patch); err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"status": "ok", "id": id, "timestamp": time.Now().UTC()})
}

// Delete 删除 bot
// DELETE /api/bots/:id
func (h *BotHandler) Delete(c *gin.Context) {
	if err := h.svc.Bot.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"status": "ok"})
}

// View 浏览数加一
// POST /api/bots/:id/view
func (h *BotHandler) View(c *gin.Context) {
	views, err := h.svc.Bot.View(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"views": views})
}

// LogUse 记录最近使用
// POST /api/log-bot-use
func (h *BotHandler) LogUse(c *gin.Context) {
	var req struct {
		BotID string `json:"botId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, bindError(err))
		return
	}

	if err := h.svc.Bot.LogUse(c.Request.Context(), middleware.GetUserID(c), req.BotID); err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"status": "ok"})
}

// Recent 最近使用的 bot
// GET /api/recent-bots
func (h *BotHandler) Recent(c *gin.Context) {
	bots, err := h.svc.Bot.Recent(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"bots": bots})
}
