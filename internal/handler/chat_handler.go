package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/persona-hub/internal/middleware"
	"github.com/ashwinyue/persona-hub/internal/service"
	"github.com/ashwinyue/persona-hub/internal/service/chat"
)

// ChatHandler 会话处理器
type ChatHandler struct {
	svc *service.Services
}

// NewChatHandler 创建会话处理器
func NewChatHandler(svc *service.Services) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// List 列出本人的会话，full=true 时返回完整内容
// GET /api/chats
func (h *ChatHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)

	if c.Query("full") == "true" {
		chats, err := h.svc.Chat.ListFull(ctx, userID)
		if err != nil {
			Error(c, err)
			return
		}
		Success(c, gin.H{"chats": chats})
		return
	}

	chats, err := h.svc.Chat.List(ctx, userID)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"chats": chats})
}

// Get 获取会话
// GET /api/chats/:id
func (h *ChatHandler) Get(c *gin.Context) {
	conv, err := h.svc.Chat.Get(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"chat": conv})
}

// Upsert 新建或覆盖会话
// POST /api/chats
func (h *ChatHandler) Upsert(c *gin.Context) {
	var req chat.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, bindError(err))
		return
	}

	resp, err := h.svc.Chat.Upsert(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, resp)
}

// Delete 删除会话
// DELETE /api/chats/:id
func (h *ChatHandler) Delete(c *gin.Context) {
	if err := h.svc.Chat.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"status": "ok"})
}
