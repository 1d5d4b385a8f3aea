package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/persona-hub/internal/middleware"
	"github.com/ashwinyue/persona-hub/internal/service"
	"github.com/ashwinyue/persona-hub/internal/service/completion"
)

// CompletionHandler 对话生成处理器
type CompletionHandler struct {
	svc *service.Services
}

// NewCompletionHandler 创建对话生成处理器
func NewCompletionHandler(svc *service.Services) *CompletionHandler {
	return &CompletionHandler{svc: svc}
}

// CreateMessage 草拟消息
// POST /api/create-message
func (h *CompletionHandler) CreateMessage(c *gin.Context) {
	var req completion.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, bindError(err))
		return
	}

	user, _ := middleware.GetCurrentUser(c)
	resp, err := h.svc.Completion.CreateMessage(c.Request.Context(), user, &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, resp)
}

// Complete 以 bot 身份回复；stream=true 时以 SSE 输出
// POST /api/bots/:id/complete
func (h *CompletionHandler) Complete(c *gin.Context) {
	var req completion.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, bindError(err))
		return
	}

	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)
	botID := c.Param("id")

	if !req.Stream {
		content, err := h.svc.Completion.Complete(ctx, userID, botID, &req)
		if err != nil {
			Error(c, err)
			return
		}
		Success(c, gin.H{"content": content})
		return
	}

	events, err := h.svc.Completion.Stream(ctx, userID, botID, &req)
	if err != nil {
		Error(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// 客户端断开时请求 ctx 取消，事件通道随之关闭
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(ev.Type, ev.Data)
		return ev.Type == "message"
	})
}
