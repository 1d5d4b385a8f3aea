package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/persona-hub/internal/middleware"
	"github.com/ashwinyue/persona-hub/internal/service"
)

// TagHandler 标签处理器
type TagHandler struct {
	svc *service.Services
}

// NewTagHandler 创建标签处理器
func NewTagHandler(svc *service.Services) *TagHandler {
	return &TagHandler{svc: svc}
}

// List 可见 bot 的全部标签，按使用次数排序
// GET /api/tags
func (h *TagHandler) List(c *gin.Context) {
	tags, err := h.svc.Tag.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"tags": tags})
}
