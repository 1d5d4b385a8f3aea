package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/persona-hub/internal/service"
)

// SystemHandler 系统处理器
type SystemHandler struct {
	svc *service.Services
}

// NewSystemHandler 创建系统处理器
func NewSystemHandler(svc *service.Services) *SystemHandler {
	return &SystemHandler{svc: svc}
}

// Health 健康检查
// GET /api/health
func (h *SystemHandler) Health(c *gin.Context) {
	Success(c, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
}

// Stats 站点统计
// GET /api/stats
func (h *SystemHandler) Stats(c *gin.Context) {
	sum, err := h.svc.Stats.Summary(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, sum)
}
